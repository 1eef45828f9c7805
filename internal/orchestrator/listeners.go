package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"labyrinth-server/internal/game"

	"github.com/rs/zerolog/log"
)

// MoveListener observes every applied move, bot moves included.
type MoveListener interface {
	OnMove(ctx context.Context, sessionID string, move game.Move)
}

type MoveListenerFunc func(ctx context.Context, sessionID string, move game.Move)

func (f MoveListenerFunc) OnMove(ctx context.Context, sessionID string, move game.Move) {
	f(ctx, sessionID, move)
}

type ListenerID uint64

type listenerEntry struct {
	id       ListenerID
	listener MoveListener
}

type listenerRegistry struct {
	mu      sync.RWMutex
	next    ListenerID
	entries []listenerEntry
}

func (r *listenerRegistry) add(l MoveListener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries = append(r.entries, listenerEntry{id: r.next, listener: l})
	return r.next
}

func (r *listenerRegistry) remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *listenerRegistry) snapshot() []listenerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]listenerEntry(nil), r.entries...)
}

// notify calls listeners in registration order. A panicking listener is
// logged and skipped.
func (r *listenerRegistry) notify(ctx context.Context, sessionID string, move game.Move) {
	for _, e := range r.snapshot() {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Str("session_id", sessionID).
						Uint64("listener_id", uint64(e.id)).
						Str("panic", fmt.Sprint(rec)).
						Msg("move_listener_panic")
				}
			}()
			e.listener.OnMove(ctx, sessionID, move)
		}()
	}
}
