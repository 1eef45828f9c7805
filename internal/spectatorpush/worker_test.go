package spectatorpush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"labyrinth-server/internal/spectatorpush/platforms"
)

// scriptedAdapter answers every delivery with err and records headlines.
type scriptedAdapter struct {
	mu        sync.Mutex
	err       error
	headlines []string
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Deliver(_ context.Context, _ platforms.Target, n platforms.Notice) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headlines = append(a.headlines, n.Headline)
	return a.err
}

func (a *scriptedAdapter) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.headlines...)
}

func startScripted(t *testing.T, cfg Config, adapter *scriptedAdapter) *Manager {
	t.Helper()
	cfg.Targets = []PushTarget{{Platform: "scripted", Endpoint: "https://hooks.example", ScopeType: ScopeAll, Enabled: true}}
	cfg.Enabled = true
	m := NewManager(cfg, nil)
	m.adapters = map[string]platforms.Adapter{"scripted": adapter}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := m.Start(ctx, newBroker(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return m
}

func noticeFor(m *Manager, sessionID, headline string) delivery {
	return delivery{
		target: m.cfg.Targets[0],
		event:  NormalizedEvent{EventType: EventTurnPlayed, SessionID: sessionID},
		notice: platforms.Notice{SessionID: sessionID, Event: EventTurnPlayed, Headline: headline},
	}
}

func TestTemporaryFailureRetriedUpToRetryMax(t *testing.T) {
	adapter := &scriptedAdapter{err: errors.New("connection reset")}
	m := startScripted(t, Config{Workers: 1, RetryMax: 2, RetryBase: 5 * time.Millisecond, FailureThreshold: 10}, adapter)

	if !m.enqueue(noticeFor(m, "s1", "x")) {
		t.Fatal("enqueue() = false")
	}
	time.Sleep(200 * time.Millisecond)
	if got := len(adapter.seen()); got != 3 {
		t.Fatalf("deliveries = %d, want the first try and 2 retries", got)
	}
}

func TestOpenCircuitSkipsDeliveries(t *testing.T) {
	adapter := &scriptedAdapter{err: &platforms.StatusError{Code: 503}}
	m := startScripted(t, Config{
		Workers:             1,
		RetryBase:           5 * time.Millisecond,
		FailureThreshold:    1,
		CircuitOpenDuration: time.Second,
	}, adapter)

	m.enqueue(noticeFor(m, "s1", "first"))
	time.Sleep(40 * time.Millisecond)
	m.enqueue(noticeFor(m, "s1", "second"))
	time.Sleep(60 * time.Millisecond)

	if got := adapter.seen(); len(got) != 1 || got[0] != "first" {
		t.Fatalf("deliveries = %v, want only the one that tripped the circuit", got)
	}
}

func TestPermanentRejectionIsDroppedWithoutTripping(t *testing.T) {
	adapter := &scriptedAdapter{err: &platforms.StatusError{Code: 410}}
	m := startScripted(t, Config{Workers: 1, RetryMax: 3, RetryBase: 5 * time.Millisecond, FailureThreshold: 1}, adapter)

	m.enqueue(noticeFor(m, "s1", "first"))
	time.Sleep(40 * time.Millisecond)
	m.enqueue(noticeFor(m, "s1", "second"))
	time.Sleep(60 * time.Millisecond)

	if got := adapter.seen(); len(got) != 2 {
		t.Fatalf("deliveries = %v, want each tried once", got)
	}
	if state := m.breaker(m.cfg.Targets[0]).State().String(); state != "closed" {
		t.Fatalf("breaker = %s, want closed", state)
	}
}

func TestOneSessionKeepsLaneOrder(t *testing.T) {
	adapter := &scriptedAdapter{}
	m := startScripted(t, Config{Workers: 4}, adapter)

	want := make([]string, 20)
	for i := range want {
		want[i] = fmt.Sprintf("move-%02d", i)
		if !m.enqueue(noticeFor(m, "s1", want[i])) {
			t.Fatalf("enqueue(%d) = false", i)
		}
	}
	deadline := time.Now().Add(time.Second)
	for len(adapter.seen()) < len(want) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := adapter.seen()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}
