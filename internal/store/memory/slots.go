package memory

import (
	"context"
	"fmt"
	"sort"

	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/store"
)

func (s *Store) sessionSlotsLocked(sessionID string) []store.PlayerSlot {
	var out []store.PlayerSlot
	for _, slot := range s.slots {
		if slot.SessionID == sessionID {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// checkSlotLocked mirrors the table constraints of player_slots.
func (s *Store) checkSlotLocked(slot *store.PlayerSlot) error {
	if slot.Kind == store.SlotPlayer {
		if _, ok := s.users[slot.UserID]; !ok {
			return fmt.Errorf("slot user %s: %w", slot.UserID, store.ErrNotFound)
		}
	}
	for _, other := range s.slots {
		if other.SessionID != slot.SessionID || other.ID == slot.ID {
			continue
		}
		if other.Index == slot.Index {
			return fmt.Errorf("slot index %d already taken in session %s", slot.Index, slot.SessionID)
		}
		if slot.UserID != "" && other.UserID == slot.UserID {
			return fmt.Errorf("user %s already seated in session %s", slot.UserID, slot.SessionID)
		}
	}
	return nil
}

func (s *Store) updateSlotLocked(slot store.PlayerSlot) store.PlayerSlot {
	slot.CreatedAt = s.slots[slot.ID].CreatedAt
	s.slots[slot.ID] = slot
	return slot
}

func (s *Store) InsertSlot(ctx context.Context, slot *store.PlayerSlot) error {
	now := s.now()
	s.mu.Lock()
	if _, ok := s.sessions[slot.SessionID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("slot session %s: %w", slot.SessionID, store.ErrNotFound)
	}
	if err := s.checkSlotLocked(slot); err != nil {
		s.mu.Unlock()
		return err
	}
	if slot.ID == "" {
		slot.ID = store.NewIDAt(now)
	}
	slot.CreatedAt = now
	s.slots[slot.ID] = *slot
	s.mu.Unlock()

	s.publish(ctx, store.EntityPlayerSlot, fanout.OpInsert, *slot)
	return nil
}

func (s *Store) ListSlots(_ context.Context, sessionID string) ([]store.PlayerSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sessionSlotsLocked(sessionID)
	if out == nil {
		out = []store.PlayerSlot{}
	}
	return out, nil
}

func (s *Store) UpdateSlot(ctx context.Context, slot store.PlayerSlot) error {
	s.mu.Lock()
	if _, ok := s.slots[slot.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if err := s.checkSlotLocked(&slot); err != nil {
		s.mu.Unlock()
		return err
	}
	updated := s.updateSlotLocked(slot)
	s.mu.Unlock()

	s.publish(ctx, store.EntityPlayerSlot, fanout.OpUpdate, updated)
	return nil
}

// RemoveSlot applies the removal, the re-indexing and the session update
// together. The removed slot is copied out of the map before deletion.
func (s *Store) RemoveSlot(ctx context.Context, removed store.PlayerSlot, moved []store.PlayerSlot, sess store.Session) error {
	s.mu.Lock()
	deleted, ok := s.slots[removed.ID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if _, ok := s.sessions[sess.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for _, slot := range moved {
		if _, ok := s.slots[slot.ID]; !ok {
			s.mu.Unlock()
			return store.ErrNotFound
		}
	}
	delete(s.slots, removed.ID)
	saved := make([]store.PlayerSlot, 0, len(moved))
	for _, slot := range moved {
		saved = append(saved, s.updateSlotLocked(slot))
	}
	updated, _ := s.updateSessionLocked(sess)
	s.mu.Unlock()

	s.publish(ctx, store.EntityPlayerSlot, fanout.OpRemove, deleted)
	for _, slot := range saved {
		s.publish(ctx, store.EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	s.publish(ctx, store.EntitySession, fanout.OpUpdate, updated)
	return nil
}
