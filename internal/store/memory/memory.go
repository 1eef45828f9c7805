// Package memory is an in-process store with the same contract as the
// Postgres repository. It backs tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/store"
)

type friendKey struct {
	userID   string
	friendID string
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	slots    map[string]store.PlayerSlot
	users    map[string]store.User
	friends  map[friendKey]bool
	now      func() time.Time
	pub      store.Publisher
}

func New() *Store {
	return &Store{
		sessions: map[string]store.Session{},
		slots:    map[string]store.PlayerSlot{},
		users:    map[string]store.User{},
		friends:  map[friendKey]bool{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) SetPublisher(p store.Publisher) {
	s.pub = p
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() {}

func (s *Store) publish(ctx context.Context, entity string, op fanout.Operation, value any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, fanout.Mutation{Entity: entity, Operation: op, Value: value})
}

func (s *Store) CreateSession(ctx context.Context, sess *store.Session, owner *store.PlayerSlot) error {
	now := s.now()
	if sess.ID == "" {
		sess.ID = store.NewIDAt(now)
	}
	sess.CreatedAt, sess.UpdatedAt = now, now

	s.mu.Lock()
	if _, ok := s.users[sess.OwnerID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("session owner %s: %w", sess.OwnerID, store.ErrNotFound)
	}
	if owner != nil {
		owner.SessionID = sess.ID
		if err := s.checkSlotLocked(owner); err != nil {
			s.mu.Unlock()
			return err
		}
		if owner.ID == "" {
			owner.ID = store.NewIDAt(now)
		}
		owner.CreatedAt = now
		s.slots[owner.ID] = *owner
	}
	s.sessions[sess.ID] = *sess
	s.mu.Unlock()

	s.publish(ctx, store.EntitySession, fanout.OpInsert, *sess)
	if owner != nil {
		s.publish(ctx, store.EntityPlayerSlot, fanout.OpInsert, *owner)
	}
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess store.Session) error {
	s.mu.Lock()
	updated, err := s.updateSessionLocked(sess)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(ctx, store.EntitySession, fanout.OpUpdate, updated)
	return nil
}

func (s *Store) updateSessionLocked(sess store.Session) (store.Session, error) {
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	sess.CreatedAt = cur.CreatedAt
	sess.UpdatedAt = s.now()
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) SaveLobby(ctx context.Context, sess store.Session, slots []store.PlayerSlot) error {
	s.mu.Lock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for _, slot := range slots {
		if _, ok := s.slots[slot.ID]; !ok {
			s.mu.Unlock()
			return store.ErrNotFound
		}
	}
	updated, _ := s.updateSessionLocked(sess)
	saved := make([]store.PlayerSlot, 0, len(slots))
	for _, slot := range slots {
		saved = append(saved, s.updateSlotLocked(slot))
	}
	s.mu.Unlock()

	s.publish(ctx, store.EntitySession, fanout.OpUpdate, updated)
	for _, slot := range saved {
		s.publish(ctx, store.EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	return nil
}

func (s *Store) FinishSession(ctx context.Context, sess store.Session, winnerSlotID string) error {
	sess.Started = true
	sess.Finished = true

	s.mu.Lock()
	updated, err := s.updateSessionLocked(sess)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var saved []store.PlayerSlot
	for _, slot := range s.sessionSlotsLocked(sess.ID) {
		slot.GameFinished = true
		slot.IsWinner = slot.ID == winnerSlotID
		saved = append(saved, s.updateSlotLocked(slot))
	}
	s.mu.Unlock()

	s.publish(ctx, store.EntitySession, fanout.OpUpdate, updated)
	for _, slot := range saved {
		s.publish(ctx, store.EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	slots := s.sessionSlotsLocked(id)
	for _, slot := range slots {
		delete(s.slots, slot.ID)
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	for _, slot := range slots {
		s.publish(ctx, store.EntityPlayerSlot, fanout.OpRemove, slot)
	}
	s.publish(ctx, store.EntitySession, fanout.OpRemove, sess)
	return nil
}

func (s *Store) ListSessions(_ context.Context, q store.SessionQuery) ([]store.Session, error) {
	s.mu.RLock()
	out := []store.Session{}
	for _, sess := range s.sessions {
		if q.Match(sess) {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
