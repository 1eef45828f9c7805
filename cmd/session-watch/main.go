// Command session-watch follows one session over the websocket feed and logs
// every mutation it receives.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"labyrinth-server/internal/config"
	"labyrinth-server/internal/logging"
	"labyrinth-server/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const pingEvery = 20 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	defer logging.Close()
	cfg, err := config.LoadWatch()
	if err != nil {
		log.Fatal().Err(err).Msg("load watch config failed")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.AuthToken)
	conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL, header)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close()

	for _, msg := range subscriptions(cfg) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatal().Err(err).Msg("subscribe failed")
		}
	}

	done := make(chan struct{})
	go keepAlive(conn, done)
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("watch_closed")
			return
		}
		report(data)
	}
}

func subscriptions(cfg config.WatchConfig) []ws.SubscribeMessage {
	out := []ws.SubscribeMessage{{Type: "subscribe", RequestID: "session", Topic: "session", SessionID: cfg.SessionID}}
	if cfg.Players {
		out = append(out, ws.SubscribeMessage{Type: "subscribe", RequestID: "players", Topic: "players", SessionID: cfg.SessionID})
	}
	return out
}

// keepAlive sends application pings. Gorilla allows one concurrent writer,
// and main only writes before this starts.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingEvery)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

func report(data []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		log.Warn().Err(err).Msg("watch_bad_frame")
		return
	}
	switch base.Type {
	case "subscribed":
		var res ws.SubscribeResult
		_ = json.Unmarshal(data, &res)
		if !res.Ok {
			log.Fatal().Str("topic", res.Topic).Str("error", res.Error).Msg("subscribe rejected")
		}
		log.Info().Str("topic", res.Topic).Str("subscription_id", res.SubscriptionID).Msg("watch_subscribed")
	case "init":
		var snap ws.InitMessage
		_ = json.Unmarshal(data, &snap)
		log.Info().Str("topic", snap.Topic).RawJSON("data", mustJSON(snap.Data)).Msg("watch_init")
	case "event":
		var ev ws.EventMessage
		_ = json.Unmarshal(data, &ev)
		log.Info().Str("topic", ev.Topic).Str("entity", ev.Entity).Str("event", ev.Event).RawJSON("data", mustJSON(ev.Data)).Msg("watch_event")
	case "pong":
	default:
		log.Debug().Str("type", base.Type).Msg("watch_ignored")
	}
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return raw
}
