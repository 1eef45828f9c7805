package spectatorpush

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type retryItem struct {
	due time.Time
	d   delivery
}

type retryHeap []retryItem

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(retryItem)) }
func (h *retryHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]
	return it
}

// retryQueue holds failed deliveries until their backoff elapses and hands
// them back to redispatch from a single goroutine. Deliveries still pending
// when run returns are dropped.
type retryQueue struct {
	redispatch func(delivery) bool

	mu    sync.Mutex
	items retryHeap
	wake  chan struct{}
}

func newRetryQueue(redispatch func(delivery) bool) *retryQueue {
	return &retryQueue{redispatch: redispatch, wake: make(chan struct{}, 1)}
}

func (q *retryQueue) Enqueue(d delivery, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	heap.Push(&q.items, retryItem{due: time.Now().Add(delay), d: d})
	metricPushRetryPending.Set(int64(q.items.Len()))
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *retryQueue) run(ctx context.Context, done <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		wait := q.flushDue(time.Now())
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			q.dropAll()
			return
		case <-done:
			q.dropAll()
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}

// flushDue redispatches every delivery whose time has come and returns how long
// to sleep until the next one.
func (q *retryQueue) flushDue(now time.Time) time.Duration {
	for {
		q.mu.Lock()
		if q.items.Len() == 0 {
			q.mu.Unlock()
			return time.Hour
		}
		next := q.items[0]
		if next.due.After(now) {
			q.mu.Unlock()
			return next.due.Sub(now)
		}
		heap.Pop(&q.items)
		metricPushRetryPending.Set(int64(q.items.Len()))
		q.mu.Unlock()
		if !q.redispatch(next.d) {
			metricPushRetryDroppedTotal.Add(1)
		}
	}
}

func (q *retryQueue) dropAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	metricPushRetryDroppedTotal.Add(int64(q.items.Len()))
	q.items = nil
	metricPushRetryPending.Set(0)
}
