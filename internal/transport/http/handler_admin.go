package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"labyrinth-server/internal/game/viewmodel"
	"labyrinth-server/internal/store"
)

type AdminStore interface {
	Ping(ctx context.Context) error
	ListSessions(ctx context.Context, q store.SessionQuery) ([]store.Session, error)
	AddFriendship(ctx context.Context, userID, friendID string, accepted bool) error
}

type AdminHandlers struct {
	store AdminStore
}

func NewAdminHandlers(st AdminStore) *AdminHandlers {
	return &AdminHandlers{store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

// Sessions lists sessions regardless of visibility. ?state=lobby|running|finished
// narrows the result.
func (h *AdminHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		q := store.SessionQuery{Visibility: store.Visibility(r.URL.Query().Get("visibility"))}
		yes, no := true, false
		switch r.URL.Query().Get("state") {
		case "":
		case "lobby":
			q.Started = &no
		case "running":
			q.Started, q.Finished = &yes, &no
		case "finished":
			q.Finished = &yes
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if q.Visibility != "" && !q.Visibility.Valid() {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		items, err := h.store.ListSessions(r.Context(), q)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		total := len(items)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}
		out := make([]viewmodel.SessionView, 0, end-offset)
		for _, sess := range items[offset:end] {
			view, err := viewmodel.BuildSessionView(sess, -1, false)
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			out = append(out, view)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": out, "total": total, "limit": limit, "offset": offset})
	}
}

// Friendships seeds the friend graph; friend management itself lives in
// another service.
func (h *AdminHandlers) Friendships() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID   string `json:"user_id"`
			FriendID string `json:"friend_id"`
			Accepted *bool  `json:"accepted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.UserID == "" || body.FriendID == "" || body.UserID == body.FriendID {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		accepted := body.Accepted == nil || *body.Accepted
		if err := h.store.AddFriendship(r.Context(), body.UserID, body.FriendID, accepted); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
