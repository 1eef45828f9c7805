package fanout

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 256

// Broker republishes store mutations to per-connection subscriptions. Each
// subscription owns a queue and a goroutine, so a slow connection or an
// expensive transform only delays itself.
type Broker struct {
	queueSize int

	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	closed bool
}

func NewBroker(queueSize int) *Broker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broker{
		queueSize: queueSize,
		subs:      map[string]map[uint64]*Subscription{},
	}
}

// Subscribe registers conn for mutations of entity. It never replays history;
// callers send their own initial snapshot.
func (b *Broker) Subscribe(conn Connection, entity string, opts Options) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		entity:   entity,
		conn:     conn,
		opts:     opts,
		ops:      operationSet(opts.Operations),
		queue:    make(chan Mutation, b.queueSize),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		broker:   b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.halt()
		close(sub.finished)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	bucket := b.subs[entity]
	if bucket == nil {
		bucket = map[uint64]*Subscription{}
		b.subs[entity] = bucket
	}
	bucket[sub.id] = sub
	b.mu.Unlock()

	metricSubscriptions.Add(1)
	go sub.run()
	return sub
}

// Publish hands m to every live subscription of m.Entity. It does not wait
// for delivery.
func (b *Broker) Publish(_ context.Context, m Mutation) {
	if !m.Operation.Valid() {
		log.Warn().Str("entity", m.Entity).Str("operation", string(m.Operation)).Msg("fanout_unknown_operation")
		return
	}
	if m.Operation == OpRemove {
		if s, ok := m.Value.(Snapshotter); ok {
			m.Value = s.Snapshot()
		}
	}
	metricPublishedTotal.Add(1)

	b.mu.RLock()
	bucket := b.subs[m.Entity]
	targets := make([]*Subscription, 0, len(bucket))
	for _, sub := range bucket {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.enqueue(m)
	}
}

// SubscriptionCount reports live subscriptions for entity.
func (b *Broker) SubscriptionCount(entity string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[entity])
}

// Close stops every subscription. Later subscriptions are born stopped.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, bucket := range b.subs {
		for _, sub := range bucket {
			all = append(all, sub)
		}
	}
	b.subs = map[string]map[uint64]*Subscription{}
	b.mu.Unlock()

	for _, sub := range all {
		if sub.halt() {
			metricSubscriptions.Add(-1)
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bucket := b.subs[sub.entity]
	if bucket == nil {
		return
	}
	delete(bucket, sub.id)
	if len(bucket) == 0 {
		delete(b.subs, sub.entity)
	}
}

func operationSet(ops []Operation) map[Operation]bool {
	if len(ops) == 0 {
		return nil
	}
	out := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		out[op] = true
	}
	return out
}
