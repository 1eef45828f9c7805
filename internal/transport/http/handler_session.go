package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/game"
	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type SessionHandlers struct {
	orch      *orchestrator.Orchestrator
	publicSvc *public.Service
}

func NewSessionHandlers(orch *orchestrator.Orchestrator, publicSvc *public.Service) *SessionHandlers {
	return &SessionHandlers{orch: orch, publicSvc: publicSvc}
}

type createSessionRequest struct {
	Setup      game.Setup       `json:"setup"`
	Visibility store.Visibility `json:"visibility"`
}

type updateSessionRequest struct {
	Setup      *game.Setup      `json:"setup"`
	Visibility store.Visibility `json:"visibility"`
	OwnerID    string           `json:"owner_id"`
}

type joinSessionRequest struct {
	DisplayName string `json:"display_name"`
}

type addBotRequest struct {
	Tier string `json:"tier"`
}

type setReadyRequest struct {
	Ready *bool `json:"ready"`
}

type transferOwnerRequest struct {
	UserID string `json:"user_id"`
}

func (h *SessionHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionCreateTotal.Add(1)
		var req createSessionRequest
		if !decodeBody(w, r, &req) {
			metricSessionCreateErrors.Add(1)
			return
		}
		userID := viewerID(r)
		sess, err := h.orch.Create(r.Context(), userID, req.Setup, req.Visibility)
		if err != nil {
			metricSessionCreateErrors.Add(1)
			writeDomainError(w, err)
			return
		}
		view, err := h.publicSvc.Session(r.Context(), sess.ID, userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(view)
	}
}

func (h *SessionHandlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateSessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		err := h.orch.Update(r.Context(), viewerID(r), orchestrator.UpdateRequest{
			SessionID:  sessionID,
			Setup:      req.Setup,
			Visibility: req.Visibility,
			OwnerID:    req.OwnerID,
		})
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		h.writeSession(w, r, sessionID)
	}
}

func (h *SessionHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinSessionRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		if err := h.orch.AddHumanPlayer(r.Context(), viewerID(r), sessionID, req.DisplayName); err != nil {
			writeLobbyError(w, err)
			return
		}
		h.writePlayers(w, r, sessionID)
	}
}

func (h *SessionHandlers) AddBot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addBotRequest
		if !decodeBody(w, r, &req) {
			return
		}
		kind, err := orchestrator.BotKind(req.Tier)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		if err := h.orch.AddBot(r.Context(), viewerID(r), sessionID, kind); err != nil {
			writeLobbyError(w, err)
			return
		}
		h.writePlayers(w, r, sessionID)
	}
}

func (h *SessionHandlers) SetReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := setReadyRequest{}
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		ready := req.Ready == nil || *req.Ready
		sessionID := chi.URLParam(r, "session_id")
		if err := h.orch.SetReady(r.Context(), viewerID(r), sessionID, ready); err != nil {
			writeLobbyError(w, err)
			return
		}
		h.writeSession(w, r, sessionID)
	}
}

// RemoveSlot handles both leaving (own slot) and kicking (owner only).
func (h *SessionHandlers) RemoveSlot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "slot_index"))
		if err != nil || index < 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		if err := h.orch.RemoveSlot(r.Context(), viewerID(r), sessionID, index); err != nil {
			writeLobbyError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *SessionHandlers) TransferOwner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferOwnerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		if err := h.orch.TransferOwnership(r.Context(), viewerID(r), sessionID, req.UserID); err != nil {
			writeLobbyError(w, err)
			return
		}
		h.writeSession(w, r, sessionID)
	}
}

func (h *SessionHandlers) Move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricMoveSubmitTotal.Add(1)
		var move game.Move
		if !decodeBody(w, r, &move) {
			metricMoveSubmitErrors.Add(1)
			return
		}
		sessionID := chi.URLParam(r, "session_id")
		userID := viewerID(r)
		if err := h.orch.Move(r.Context(), sessionID, move, userID); err != nil {
			metricMoveSubmitErrors.Add(1)
			log.Debug().Err(err).Str("session_id", sessionID).Str("user_id", userID).Msg("move_rejected")
			writeDomainError(w, err)
			return
		}
		h.writeSession(w, r, sessionID)
	}
}

func (h *SessionHandlers) Available() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Available(r.Context(), viewerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) Own() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.publicSvc.Own(r.Context(), viewerID(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) writeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	view, err := h.publicSvc.Session(r.Context(), sessionID, viewerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(view)
}

func (h *SessionHandlers) writePlayers(w http.ResponseWriter, r *http.Request, sessionID string) {
	resp, err := h.publicSvc.Players(r.Context(), sessionID, viewerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeLobbyError(w http.ResponseWriter, err error) {
	metricLobbyCommandErrors.Add(1)
	writeDomainError(w, err)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, public.ErrInvalidRequest):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, public.ErrSessionNotFound):
		WriteHTTPError(w, http.StatusNotFound, "session_not_found")
	default:
		status, code := orchestrator.MapError(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("session_command_failed")
		}
		WriteHTTPError(w, status, code)
	}
}
