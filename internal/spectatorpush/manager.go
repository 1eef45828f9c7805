// Package spectatorpush forwards session lifecycle changes to chat and
// webhook targets. It subscribes to the session entity on the fan-out broker
// and turns committed writes into created/started/turn/finished/dissolved
// notifications.
package spectatorpush

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/game"
	"labyrinth-server/internal/spectatorpush/platforms"
	"labyrinth-server/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// SlotLister resolves the winner of a finished session.
type SlotLister interface {
	ListSlots(ctx context.Context, sessionID string) ([]store.PlayerSlot, error)
}

type sessionMark struct {
	started   bool
	finished  bool
	moveCount int
}

type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter
	slots    SlotLister

	// lanes holds one queue per worker. Jobs of one session always use the
	// same lane so its notifications leave in commit order.
	lanes  []chan delivery
	retryQ *retryQueue
	done   chan struct{}
	sub    *fanout.Subscription

	mu       sync.Mutex
	started  bool
	marks    map[string]sessionMark
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewManager(cfg Config, slots SlotLister) *Manager {
	cfg = cfg.withDefaults()
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	m := &Manager{
		cfg: cfg,
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"webhook": platforms.NewWebhookAdapter(client),
		},
		slots:    slots,
		lanes:    make([]chan delivery, cfg.Workers),
		done:     make(chan struct{}),
		marks:    map[string]sessionMark{},
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
	perLane := max(cfg.DispatchBuffer/cfg.Workers, 1)
	for i := range m.lanes {
		m.lanes[i] = make(chan delivery, perLane)
	}
	m.retryQ = newRetryQueue(m.enqueue)
	return m
}

// Start launches the workers and subscribes to session writes on broker.
// Everything stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context, broker *fanout.Broker) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for _, lane := range m.lanes {
		go m.worker(ctx, lane)
	}
	go m.retryQ.run(ctx, m.done)
	if m.cfg.ConfigPath != "" {
		go m.watchTargets(ctx)
	}
	m.sub = broker.Subscribe(m, store.EntitySession, fanout.Options{})
	log.Info().Int("targets", len(m.currentTargets())).Int("workers", m.cfg.Workers).Msg("session_push_started")
	go func() {
		<-ctx.Done()
		close(m.done)
		m.sub.Unsubscribe()
	}()
	return nil
}

func (m *Manager) ID() string { return "session-push" }

func (m *Manager) Done() <-chan struct{} { return m.done }

// Push receives one broker message. It never blocks on delivery.
func (m *Manager) Push(ctx context.Context, msg fanout.Message) error {
	sess, ok := sessionValue(msg.Data)
	if !ok {
		return nil
	}
	ev, ok := m.classify(msg.Event, sess)
	if !ok {
		return nil
	}
	if ev.EventType == EventSessionFinished {
		ev.WinnerUserID, ev.WinnerName = m.winner(ctx, sess.ID)
	}
	m.handleEvent(ev)
	return nil
}

func sessionValue(v any) (store.Session, bool) {
	switch s := v.(type) {
	case store.Session:
		return s, true
	case *store.Session:
		if s == nil {
			return store.Session{}, false
		}
		return *s, true
	default:
		return store.Session{}, false
	}
}

// classify compares sess with the last seen version of the same session and
// names the transition. Lobby edits produce nothing.
func (m *Manager) classify(event string, sess store.Session) (NormalizedEvent, bool) {
	ev := NormalizedEvent{
		EventID:    store.NewID(),
		ServerTS:   time.Now().UnixMilli(),
		SessionID:  sess.ID,
		OwnerID:    sess.OwnerID,
		Visibility: string(sess.Visibility),
	}
	mark := sessionMark{started: sess.Started, finished: sess.Finished}
	if st, err := game.DecodeState(sess.State); err == nil && sess.Started {
		turn, moves := st.Turn, st.MoveCount
		ev.Turn, ev.MoveCount = &turn, &moves
		mark.moveCount = moves
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, known := m.marks[sess.ID]
	switch event {
	case fanout.OpInsert.Event():
		m.marks[sess.ID] = mark
		ev.EventType = EventSessionCreated
	case fanout.OpRemove.Event():
		delete(m.marks, sess.ID)
		if sess.Finished {
			return ev, false
		}
		ev.EventType = EventSessionDissolved
	case fanout.OpUpdate.Event():
		switch {
		case sess.Finished && !prev.finished:
			delete(m.marks, sess.ID)
			ev.EventType = EventSessionFinished
		case sess.Finished:
			return ev, false
		case sess.Started && !prev.started && (known || mark.moveCount == 0):
			m.marks[sess.ID] = mark
			ev.EventType = EventSessionStarted
		case sess.Started && mark.moveCount != prev.moveCount:
			m.marks[sess.ID] = mark
			ev.EventType = EventTurnPlayed
		default:
			m.marks[sess.ID] = mark
			return ev, false
		}
	default:
		return ev, false
	}
	return ev, true
}

func (m *Manager) winner(ctx context.Context, sessionID string) (string, string) {
	if m.slots == nil {
		return "", ""
	}
	slots, err := m.slots.ListSlots(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session_push_winner_lookup_failed")
		return "", ""
	}
	for _, s := range slots {
		if !s.IsWinner {
			continue
		}
		name := s.DisplayName
		if name == "" && s.UserID == "" {
			name = string(s.Kind)
		}
		if name == "" {
			name = s.UserID
		}
		return s.UserID, name
	}
	return "", ""
}

func (m *Manager) handleEvent(ev NormalizedEvent) {
	metricPushEventsTotal.Add(1)
	targets := matchTargets(m.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}
	notice, ok := FormatNotice(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		m.enqueue(delivery{target: target, event: ev, notice: notice})
	}
}

// enqueue puts d on its session's lane. A full lane drops d.
func (m *Manager) enqueue(d delivery) bool {
	lane := m.lanes[laneFor(d.event.SessionID, len(m.lanes))]
	select {
	case <-m.done:
		return false
	case lane <- d:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Add(1)
		return true
	default:
		metricPushDroppedTotal.Add(1)
		return false
	}
}

func laneFor(sessionID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(n))
}

func (m *Manager) currentTargets() []PushTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushTarget, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}
