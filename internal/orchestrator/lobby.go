package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"

	"github.com/rs/zerolog/log"
)

type UpdateRequest struct {
	SessionID string
	// Setup replaces the lobby setup when non-nil.
	Setup *game.Setup
	// Visibility is kept when empty.
	Visibility store.Visibility
	// OwnerID hands the session to another seated user when non-empty.
	OwnerID string
}

func parseVisibility(v store.Visibility) (store.Visibility, error) {
	v = store.Visibility(strings.ToLower(strings.TrimSpace(string(v))))
	if v == "" {
		return store.VisibilityPublic, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("%w: unknown visibility %q", ErrInvalidSetup, v)
	}
	return v, nil
}

// Create builds the initial state from raw, stores the session and seats the
// owner at index 0.
func (o *Orchestrator) Create(ctx context.Context, ownerID string, raw game.Setup, visibility store.Visibility) (*store.Session, error) {
	vis, err := parseVisibility(visibility)
	if err != nil {
		return nil, err
	}
	if _, err := o.loadUser(ctx, ownerID); err != nil {
		return nil, err
	}
	setup, err := o.rules.FinalizeSetup(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	inst, err := o.rules.BuildFromSetup(setup, setup.PlayerCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	state, err := inst.Stringify()
	if err != nil {
		return nil, err
	}
	setupJSON, err := encodeSetup(setup)
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		ID:         store.NewID(),
		Visibility: vis,
		OwnerID:    ownerID,
		State:      state,
		Setup:      setupJSON,
	}
	owner := &store.PlayerSlot{Index: 0, Kind: store.SlotPlayer, UserID: ownerID}
	if err := o.repo.CreateSession(ctx, sess, owner); err != nil {
		return nil, err
	}
	metricSessionsCreated.Add(1)
	log.Info().
		Str("session_id", sess.ID).
		Str("owner_id", ownerID).
		Str("visibility", string(vis)).
		Int("player_count", setup.PlayerCount).
		Msg("session_created")
	return sess, nil
}

func (o *Orchestrator) AddHumanPlayer(ctx context.Context, userID, sessionID, displayName string) error {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := o.loadUser(ctx, userID); err != nil {
		return err
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := slotOfUser(slots, userID); ok {
		return ErrAlreadyOccupied
	}
	if sess.Started {
		return ErrAlreadyStarted
	}
	if err := o.checkCapacity(sess, slots); err != nil {
		return err
	}

	slot := &store.PlayerSlot{
		SessionID:   sessionID,
		Index:       nextFreeIndex(slots),
		Kind:        store.SlotPlayer,
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := o.repo.InsertSlot(ctx, slot); err != nil {
		return err
	}
	log.Info().Str("session_id", sessionID).Str("user_id", userID).Int("slot_index", slot.Index).Msg("player_joined")
	return nil
}

// AddBot seats a bot of the given kind. Bots are always ready.
func (o *Orchestrator) AddBot(ctx context.Context, requesterID, sessionID string, kind store.SlotKind) error {
	strategy, ok := strategyFor(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidBotTier, kind)
	}
	if _, err := o.rules.MoveGenerator(strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBotTier, err)
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != requesterID {
		return ErrNoPermission
	}
	if sess.Started {
		return ErrAlreadyStarted
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := o.checkCapacity(sess, slots); err != nil {
		return err
	}

	slot := &store.PlayerSlot{
		SessionID: sessionID,
		Index:     nextFreeIndex(slots),
		Kind:      kind,
		Ready:     true,
	}
	if err := o.repo.InsertSlot(ctx, slot); err != nil {
		return err
	}
	log.Info().Str("session_id", sessionID).Str("kind", string(kind)).Int("slot_index", slot.Index).Msg("bot_added")
	return nil
}

func (o *Orchestrator) checkCapacity(sess store.Session, slots []store.PlayerSlot) error {
	setup, err := decodeSetup(sess)
	if err != nil {
		return err
	}
	if len(slots) >= setup.PlayerCount {
		return ErrSessionFull
	}
	return nil
}

// SetReady flips the caller's ready flag and starts the session once at
// least two slots are seated and all are ready. Callers without a slot are
// ignored.
func (o *Orchestrator) SetReady(ctx context.Context, userID, sessionID string, ready bool) error {
	botFirst, err := o.setReady(ctx, userID, sessionID, ready)
	if err != nil {
		return err
	}
	if botFirst {
		o.runBots(ctx, sessionID, o.cfg.BotDelay)
	}
	return nil
}

func (o *Orchestrator) setReady(ctx context.Context, userID, sessionID string, ready bool) (bool, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return false, err
	}
	slot, ok := slotOfUser(slots, userID)
	if !ok {
		return false, nil
	}
	if sess.Started {
		return false, ErrAlreadyStarted
	}
	if slot.Ready != ready {
		slot.Ready = ready
		if err := o.repo.UpdateSlot(ctx, slot); err != nil {
			return false, err
		}
		for i := range slots {
			if slots[i].ID == slot.ID {
				slots[i] = slot
			}
		}
	}
	return o.maybeStart(ctx, sess, slots)
}

// maybeStart moves a lobby to in progress when it can. It reports whether
// the first turn belongs to a bot.
func (o *Orchestrator) maybeStart(ctx context.Context, sess store.Session, slots []store.PlayerSlot) (bool, error) {
	if len(slots) < 2 {
		return false, nil
	}
	for _, s := range slots {
		if !s.Ready {
			return false, nil
		}
	}
	setup, err := decodeSetup(sess)
	if err != nil {
		return false, err
	}
	inst, err := o.rules.BuildFromSetup(setup, len(slots))
	if err != nil {
		return false, fmt.Errorf("build state for session %s: %w", sess.ID, err)
	}
	state, err := inst.Stringify()
	if err != nil {
		return false, err
	}
	sess.State = state
	sess.Started = true
	if err := o.repo.UpdateSession(ctx, sess); err != nil {
		return false, err
	}
	metricSessionsStarted.Add(1)
	log.Info().Str("session_id", sess.ID).Int("players", len(slots)).Msg("session_started")

	turn, ok := inst.TurnOwnerIndex()
	if !ok {
		return false, nil
	}
	first, ok := slotAt(slots, turn)
	return ok && first.Kind.IsBot(), nil
}

// RemoveSlot frees a lobby slot. The occupant or the owner may do it.
// Remaining slots are re-indexed densely. When the owner leaves, the lowest
// seated human takes over; with no human left the session is dissolved.
func (o *Orchestrator) RemoveSlot(ctx context.Context, requesterID, sessionID string, slotIndex int) error {
	botFirst, err := o.removeSlot(ctx, requesterID, sessionID, slotIndex)
	if err != nil {
		return err
	}
	if botFirst {
		o.runBots(ctx, sessionID, o.cfg.BotDelay)
	}
	return nil
}

func (o *Orchestrator) removeSlot(ctx context.Context, requesterID, sessionID string, slotIndex int) (bool, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return false, err
	}
	target, ok := slotAt(slots, slotIndex)
	if !ok {
		return false, fmt.Errorf("%w: index %d", ErrSlotNotFound, slotIndex)
	}
	if requesterID == "" || (requesterID != target.UserID && requesterID != sess.OwnerID) {
		return false, ErrNoPermission
	}
	if sess.Started {
		return false, ErrAlreadyStarted
	}

	remaining := make([]store.PlayerSlot, 0, len(slots)-1)
	var moved []store.PlayerSlot
	for _, s := range slots {
		if s.ID == target.ID {
			continue
		}
		if s.Index != len(remaining) {
			s.Index = len(remaining)
			moved = append(moved, s)
		}
		remaining = append(remaining, s)
	}

	if target.UserID != "" && target.UserID == sess.OwnerID {
		heir, found := firstHuman(remaining)
		if !found {
			return false, o.dissolve(ctx, sess, "owner_left")
		}
		sess.OwnerID = heir.UserID
		log.Info().Str("session_id", sessionID).Str("owner_id", heir.UserID).Msg("session_owner_transferred")
	}

	if err := o.repo.RemoveSlot(ctx, target, moved, sess); err != nil {
		return false, err
	}
	log.Info().Str("session_id", sessionID).Int("slot_index", slotIndex).Str("kind", string(target.Kind)).Msg("slot_removed")
	return o.maybeStart(ctx, sess, remaining)
}

func firstHuman(slots []store.PlayerSlot) (store.PlayerSlot, bool) {
	for _, s := range slots {
		if !s.Kind.IsBot() && s.UserID != "" {
			return s, true
		}
	}
	return store.PlayerSlot{}, false
}

func (o *Orchestrator) dissolve(ctx context.Context, sess store.Session, reason string) error {
	o.timers.cancel(sess.ID)
	if err := o.repo.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	metricSessionsDissolved.Add(1)
	log.Info().Str("session_id", sess.ID).Str("reason", reason).Msg("session_dissolved")
	return nil
}

// Update edits a lobby. Every human slot becomes unready afterwards.
func (o *Orchestrator) Update(ctx context.Context, userID string, req UpdateRequest) error {
	unlock := o.locks.lock(req.SessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, req.SessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != userID {
		return ErrNoPermission
	}
	if sess.Started {
		return ErrAlreadyStarted
	}
	slots, err := o.repo.ListSlots(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if req.Visibility != "" {
		vis, err := parseVisibility(req.Visibility)
		if err != nil {
			return err
		}
		sess.Visibility = vis
	}
	if req.Setup != nil {
		setup, err := o.rules.FinalizeSetup(*req.Setup)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSetup, err)
		}
		if setup.PlayerCount < len(slots) {
			return fmt.Errorf("%w: %d seated, playerCount %d", ErrInvalidPlayerCount, len(slots), setup.PlayerCount)
		}
		inst, err := o.rules.BuildFromSetup(setup, setup.PlayerCount)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSetup, err)
		}
		if sess.State, err = inst.Stringify(); err != nil {
			return err
		}
		if sess.Setup, err = encodeSetup(setup); err != nil {
			return err
		}
	}
	if req.OwnerID != "" && req.OwnerID != sess.OwnerID {
		if err := o.checkNewOwner(ctx, slots, req.OwnerID); err != nil {
			return err
		}
		sess.OwnerID = req.OwnerID
	}

	var reset []store.PlayerSlot
	for _, s := range slots {
		if !s.Kind.IsBot() && s.Ready {
			s.Ready = false
			reset = append(reset, s)
		}
	}
	if err := o.repo.SaveLobby(ctx, sess, reset); err != nil {
		return err
	}
	log.Info().Str("session_id", sess.ID).Str("owner_id", sess.OwnerID).Msg("session_updated")
	return nil
}

func (o *Orchestrator) checkNewOwner(ctx context.Context, slots []store.PlayerSlot, userID string) error {
	if _, err := o.loadUser(ctx, userID); err != nil {
		return err
	}
	slot, ok := slotOfUser(slots, userID)
	if !ok || slot.Kind.IsBot() {
		return fmt.Errorf("%w: %s", ErrNotInSession, userID)
	}
	return nil
}

// TransferOwnership hands the session to another seated human.
func (o *Orchestrator) TransferOwnership(ctx context.Context, requesterID, sessionID, newOwnerID string) error {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != requesterID {
		return ErrNoPermission
	}
	if sess.Finished {
		return ErrGameFinished
	}
	if newOwnerID == sess.OwnerID {
		return nil
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := o.checkNewOwner(ctx, slots, newOwnerID); err != nil {
		return err
	}
	sess.OwnerID = newOwnerID
	if err := o.repo.UpdateSession(ctx, sess); err != nil {
		return err
	}
	log.Info().Str("session_id", sessionID).Str("owner_id", newOwnerID).Msg("session_owner_transferred")
	return nil
}
