package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/auth"
	"labyrinth-server/internal/config"
	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/game"
	"labyrinth-server/internal/ledger"
	"labyrinth-server/internal/logging"
	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/spectatorpush"
	"labyrinth-server/internal/store"
	"labyrinth-server/internal/store/memory"
	httptransport "labyrinth-server/internal/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// backend is the union of what the server components need from storage.
// Both the postgres and the in-memory store satisfy it.
type backend interface {
	orchestrator.Repository
	httptransport.Store
	GetUser(ctx context.Context, id string) (store.User, error)
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
	RecordOutcome(ctx context.Context, winnerID string, loserIDs []string) error
	SetPublisher(p store.Publisher)
}

type app struct {
	router  *chi.Mux
	server  *http.Server
	orch    *orchestrator.Orchestrator
	broker  *fanout.Broker
	cleanup func()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer logging.Close()

	st, closeStore, err := openStore(cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("store ping failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}
	a.cleanup = closeStore
	httptransport.LogRoutes(a.router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("driver", cfg.Server.StoreDriver).Msg("http listening")
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown_requested")
	}
	a.shutdown(time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second)
}

func openStore(cfg config.ServerConfig) (backend, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return memory.New(), func() {}, nil
	}
	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// build wires every component on top of st. Background work stops with ctx.
func build(ctx context.Context, cfg config.AppConfig, st backend) (*app, error) {
	broker := fanout.NewBroker(cfg.Game.FanoutQueueSize)
	st.SetPublisher(broker)

	orch := orchestrator.New(st, st, st, game.NewLabyrinth(), orchestrator.Config{
		BotDelay: cfg.Game.BotMoveDelay(),
	})
	orch.AddMoveListener(ledger.New(st, st))

	pushCfg, err := spectatorpush.ConfigFromServer(cfg.Server)
	if err != nil {
		orch.Close()
		broker.Close()
		return nil, err
	}
	push := spectatorpush.NewManager(pushCfg, st)
	if err := push.Start(ctx, broker); err != nil {
		orch.Close()
		broker.Close()
		return nil, err
	}

	r := httptransport.NewRouter(httptransport.Deps{
		Config:       cfg.Server,
		Store:        st,
		Orchestrator: orch,
		Public:       public.NewService(orch, st, st),
		Broker:       broker,
		Verifier:     auth.NewVerifier(cfg.Server.JWTSecret, cfg.Server.JWTIssuer),
	})
	return &app{
		router: r,
		server: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		orch:    orch,
		broker:  broker,
		cleanup: func() {},
	}, nil
}

// shutdown drains HTTP first so no command lands on a stopped orchestrator.
func (a *app) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http_shutdown_incomplete")
	}
	a.orch.Close()
	a.broker.Close()
	a.cleanup()
	log.Info().Msg("server_stopped")
}
