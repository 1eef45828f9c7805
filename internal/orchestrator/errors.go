package orchestrator

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidSetup       = errors.New("invalid_setup")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrSlotNotFound       = errors.New("slot_not_found")
	ErrAlreadyOccupied    = errors.New("already_occupied")
	ErrAlreadyStarted     = errors.New("already_started")
	ErrSessionFull        = errors.New("session_full")
	ErrNoPermission       = errors.New("no_permission")
	ErrInvalidPlayerCount = errors.New("invalid_player_count")
	ErrInvalidMove        = errors.New("invalid_move")
	ErrGameNotStarted     = errors.New("game_not_started")
	ErrGameFinished       = errors.New("game_finished")
	ErrInvalidBotTier     = errors.New("invalid_bot_tier")
	ErrNotInSession       = errors.New("not_in_session")
)

// errStaleBotTurn marks a bot turn that no longer applies.
var errStaleBotTurn = errors.New("stale_bot_turn")

func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidSetup):
		return http.StatusBadRequest, "invalid_setup"
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, ErrSlotNotFound):
		return http.StatusNotFound, "slot_not_found"
	case errors.Is(err, ErrAlreadyOccupied):
		return http.StatusConflict, "already_occupied"
	case errors.Is(err, ErrAlreadyStarted):
		return http.StatusConflict, "already_started"
	case errors.Is(err, ErrSessionFull):
		return http.StatusConflict, "session_full"
	case errors.Is(err, ErrNoPermission):
		return http.StatusForbidden, "no_permission"
	case errors.Is(err, ErrInvalidPlayerCount):
		return http.StatusBadRequest, "invalid_player_count"
	case errors.Is(err, ErrInvalidMove):
		return http.StatusBadRequest, "invalid_move"
	case errors.Is(err, ErrGameNotStarted):
		return http.StatusConflict, "game_not_started"
	case errors.Is(err, ErrGameFinished):
		return http.StatusConflict, "game_finished"
	case errors.Is(err, ErrInvalidBotTier):
		return http.StatusBadRequest, "invalid_bot_tier"
	case errors.Is(err, ErrNotInSession):
		return http.StatusBadRequest, "not_in_session"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
