package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/auth"
	"labyrinth-server/internal/config"
	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/mcpserver"
	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/spectatorgateway"
	"labyrinth-server/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Store is what the HTTP surface needs from a repository beyond the
// orchestrator: user upserts, health and the admin views.
type Store interface {
	UserStore
	AdminStore
}

type Deps struct {
	Config       config.ServerConfig
	Store        Store
	Orchestrator *orchestrator.Orchestrator
	Public       *public.Service
	Broker       *fanout.Broker
	Verifier     *auth.Verifier
}

func NewRouter(d Deps) *chi.Mux {
	mcpSrv := mcpserver.New(d.Orchestrator, d.Public, d.Store, d.Verifier)
	wsSrv := ws.NewServer(d.Broker, d.Public, d.Verifier)

	sessionHandlers := NewSessionHandlers(d.Orchestrator, d.Public)
	publicHandlers := NewPublicHandlers(d.Public)
	adminHandlers := NewAdminHandlers(d.Store)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	r.Get("/ws", wsSrv.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(OptionalViewer(d.Verifier))
			r.Get("/public/leaderboard", publicHandlers.Leaderboard())
			r.Get("/public/sessions/{session_id}", publicHandlers.Session())
			r.Get("/public/sessions/{session_id}/players", publicHandlers.Players())
			r.Get("/public/sessions/{session_id}/board", publicHandlers.Board())
		})

		r.Group(func(r chi.Router) {
			r.Use(UserAuthMiddleware(d.Verifier, d.Store))
			r.Post("/sessions", sessionHandlers.Create())
			r.Get("/sessions/available", sessionHandlers.Available())
			r.Get("/sessions/own", sessionHandlers.Own())
			r.Put("/sessions/{session_id}", sessionHandlers.Update())
			r.Post("/sessions/{session_id}/join", sessionHandlers.Join())
			r.Post("/sessions/{session_id}/bots", sessionHandlers.AddBot())
			r.Put("/sessions/{session_id}/ready", sessionHandlers.SetReady())
			r.Put("/sessions/{session_id}/owner", sessionHandlers.TransferOwner())
			r.Delete("/sessions/{session_id}/slots/{slot_index}", sessionHandlers.RemoveSlot())
			r.Post("/sessions/{session_id}/moves", sessionHandlers.Move())
			r.Get("/sessions/{session_id}/events", spectatorgateway.EventsHandler(d.Broker, d.Public, viewerID))
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.Config.AdminAPIKey))
			r.Get("/admin/sessions", adminHandlers.Sessions())
			r.Post("/admin/friendships", adminHandlers.Friendships())

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
