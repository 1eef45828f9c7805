package orchestrator

import (
	"sync"
	"time"
)

// botTimers keeps at most one pending bot turn per session.
type botTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newBotTimers() *botTimers {
	return &botTimers{timers: map[string]*time.Timer{}}
}

func (b *botTimers) schedule(sessionID string, delay time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if old := b.timers[sessionID]; old != nil {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		b.mu.Lock()
		if b.timers[sessionID] != t {
			b.mu.Unlock()
			return
		}
		delete(b.timers, sessionID)
		b.mu.Unlock()
		fn()
	})
	b.timers[sessionID] = t
}

func (b *botTimers) cancel(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := b.timers[sessionID]; t != nil {
		t.Stop()
		delete(b.timers, sessionID)
	}
}

func (b *botTimers) pending(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timers[sessionID] != nil
}

func (b *botTimers) stopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}
