// Package spectatorgateway streams session topics over server-sent events
// for clients that cannot hold a websocket.
package spectatorgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/store"

	"github.com/go-chi/chi/v5"
)

var pingInterval = 15 * time.Second

const streamBuffer = 32

type Topics interface {
	OpenTopic(ctx context.Context, kind public.TopicKind, sessionID, viewerID string) (*public.Topic, error)
}

// ViewerFunc names the authenticated caller of r, or "" when there is none.
type ViewerFunc func(r *http.Request) string

// EventsHandler serves GET /api/sessions/{session_id}/events. The topic
// query parameter picks "session" (default) or "players". The first event is
// the init snapshot. Anonymous callers are rejected.
func EventsHandler(broker *fanout.Broker, topics Topics, viewer ViewerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		kind := public.TopicKind(r.URL.Query().Get("topic"))
		if kind == "" {
			kind = public.TopicSession
		}
		viewerID := ""
		if viewer != nil {
			viewerID = viewer(r)
		}
		if viewerID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if sessionID == "" || !kind.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		topic, err := topics.OpenTopic(r.Context(), kind, sessionID, viewerID)
		if err != nil {
			switch {
			case errors.Is(err, public.ErrSessionNotFound):
				writeError(w, http.StatusNotFound, "session_not_found")
			case errors.Is(err, public.ErrInvalidRequest):
				writeError(w, http.StatusBadRequest, "invalid_request")
			default:
				writeError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		metricSessionSSEConnectionsTotal.Add(1)
		metricSessionSSEConnectionsActive.Add(1)
		defer metricSessionSSEConnectionsActive.Add(-1)

		conn := &streamConn{id: store.NewID(), msgs: make(chan fanout.Message, streamBuffer), done: r.Context().Done()}
		sub := broker.Subscribe(conn, topic.Entity, topic.Options)
		defer sub.Unsubscribe()

		SetSSEHeaders(w)
		seq := 0
		write := func(event string, data any) error {
			seq++
			return WriteSSE(w, StreamEvent{
				EventID:  strconv.Itoa(seq),
				Event:    event,
				ServerTS: time.Now().UnixMilli(),
				Topic:    string(kind),
				Data:     data,
			})
		}
		if err := write("init", topic.Init); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-sub.Done():
				return
			case m := <-conn.msgs:
				if err := write(m.Event, m.Data); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if err := WriteSSE(w, StreamEvent{Event: "ping", ServerTS: time.Now().UnixMilli(), Data: map[string]any{"ts": time.Now().UnixMilli()}}); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

type streamConn struct {
	id   string
	msgs chan fanout.Message
	done <-chan struct{}
}

func (c *streamConn) ID() string { return c.id }

func (c *streamConn) Done() <-chan struct{} { return c.done }

func (c *streamConn) Push(ctx context.Context, m fanout.Message) error {
	select {
	case c.msgs <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return context.Canceled
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}
