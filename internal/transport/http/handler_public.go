package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"labyrinth-server/internal/app/public"

	"github.com/go-chi/chi/v5"
)

type PublicHandlers struct {
	publicSvc *public.Service
}

func NewPublicHandlers(publicSvc *public.Service) *PublicHandlers {
	return &PublicHandlers{publicSvc: publicSvc}
}

func (h *PublicHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Session(r.Context(), chi.URLParam(r, "session_id"), viewerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Players() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Players(r.Context(), chi.URLParam(r, "session_id"), viewerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Board() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Board(r.Context(), chi.URLParam(r, "session_id"), viewerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		offset := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			limit = n
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			offset = n
		}
		resp, err := h.publicSvc.Leaderboard(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
