package viewmodel

import (
	"encoding/json"
	"fmt"
	"time"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"
)

type SessionView struct {
	ID         string     `json:"id"`
	Visibility string     `json:"visibility"`
	OwnerID    string     `json:"owner_id"`
	Started    bool       `json:"started"`
	Finished   bool       `json:"finished"`
	Setup      game.Setup `json:"setup"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Board      *BoardView `json:"board,omitempty"`
}

type SlotView struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	Index        int    `json:"index"`
	Kind         string `json:"kind"`
	UserID       string `json:"user_id,omitempty"`
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	IsWinner     bool   `json:"is_winner"`
	GameFinished bool   `json:"game_finished"`
}

// BuildSessionView decodes the stored setup and, when withBoard is set, the
// board as seen by viewerIndex.
func BuildSessionView(sess store.Session, viewerIndex int, withBoard bool) (SessionView, error) {
	view := SessionView{
		ID:         sess.ID,
		Visibility: string(sess.Visibility),
		OwnerID:    sess.OwnerID,
		Started:    sess.Started,
		Finished:   sess.Finished,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
	if sess.Setup != "" {
		if err := json.Unmarshal([]byte(sess.Setup), &view.Setup); err != nil {
			return SessionView{}, fmt.Errorf("decode setup of session %s: %w", sess.ID, err)
		}
	}
	if withBoard && sess.State != "" {
		st, err := game.DecodeState(sess.State)
		if err != nil {
			return SessionView{}, err
		}
		board := BuildBoardView(st, viewerIndex)
		view.Board = &board
	}
	return view, nil
}

// BuildSlotView prefers the slot display name, then the user name, then the
// bot tier.
func BuildSlotView(slot store.PlayerSlot, userName string) SlotView {
	name := slot.DisplayName
	if name == "" {
		name = userName
	}
	if name == "" {
		name = string(slot.Kind)
	}
	return SlotView{
		ID:           slot.ID,
		SessionID:    slot.SessionID,
		Index:        slot.Index,
		Kind:         string(slot.Kind),
		UserID:       slot.UserID,
		Name:         name,
		Ready:        slot.Ready,
		IsWinner:     slot.IsWinner,
		GameFinished: slot.GameFinished,
	}
}

func BuildSlotViews(slots []store.PlayerSlot, names map[string]string) []SlotView {
	out := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		out = append(out, BuildSlotView(slot, names[slot.UserID]))
	}
	return out
}

// ViewerIndex is the slot index of userID, or -1.
func ViewerIndex(slots []store.PlayerSlot, userID string) int {
	if userID == "" {
		return -1
	}
	for _, slot := range slots {
		if slot.UserID == userID {
			return slot.Index
		}
	}
	return -1
}
