package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type Subscription struct {
	id     uint64
	entity string
	conn   Connection
	opts   Options
	ops    map[Operation]bool

	queue    chan Mutation
	stop     chan struct{}
	finished chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	broker   *Broker
}

func (s *Subscription) Entity() string {
	return s.entity
}

// Done is closed once the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.finished
}

// Unsubscribe stops delivery and drops the subscription from the registry.
func (s *Subscription) Unsubscribe() {
	if s.halt() {
		s.broker.remove(s)
		metricSubscriptions.Add(-1)
	}
}

func (s *Subscription) halt() bool {
	stopped := false
	s.once.Do(func() {
		s.cancel()
		close(s.stop)
		stopped = true
	})
	return stopped
}

func (s *Subscription) wants(op Operation) bool {
	return s.ops == nil || s.ops[op]
}

func (s *Subscription) enqueue(m Mutation) {
	if !s.wants(m.Operation) {
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.queue <- m:
	default:
		metricDroppedTotal.Add(1)
		log.Warn().
			Str("entity", s.entity).
			Str("connection_id", s.conn.ID()).
			Str("operation", string(m.Operation)).
			Msg("fanout_queue_full")
	}
}

func (s *Subscription) run() {
	defer close(s.finished)
	for {
		select {
		case <-s.stop:
			return
		case <-s.conn.Done():
			s.Unsubscribe()
			return
		case m := <-s.queue:
			if s.disconnected() {
				return
			}
			s.deliver(m)
		}
	}
}

// disconnected reports whether delivery must stop. A closed connection is
// unsubscribed here so queued mutations are never pushed after Done.
func (s *Subscription) disconnected() bool {
	select {
	case <-s.stop:
		return true
	default:
	}
	select {
	case <-s.conn.Done():
		s.Unsubscribe()
		return true
	default:
		return false
	}
}

func (s *Subscription) deliver(m Mutation) {
	defer func() {
		if r := recover(); r != nil {
			metricPanicTotal.Add(1)
			log.Error().
				Str("entity", s.entity).
				Str("connection_id", s.conn.ID()).
				Str("panic", fmt.Sprint(r)).
				Msg("fanout_subscription_panic")
		}
	}()

	value := m.Value
	if s.opts.Filter != nil {
		ok, err := s.opts.Filter(s.ctx, value, m.Operation)
		if err != nil {
			metricFilterErrorTotal.Add(1)
			log.Warn().Err(err).Str("entity", s.entity).Str("connection_id", s.conn.ID()).Msg("fanout_filter_failed")
			return
		}
		if !ok {
			return
		}
	}
	if s.opts.Transform != nil {
		out, err := s.opts.Transform(s.ctx, value, m.Operation)
		if err != nil {
			metricTransformErrorTotal.Add(1)
			log.Warn().Err(err).Str("entity", s.entity).Str("connection_id", s.conn.ID()).Msg("fanout_transform_failed")
			return
		}
		value = out
	}

	if s.disconnected() {
		return
	}
	msg := Message{Entity: s.entity, Event: m.Operation.Event(), Data: value}
	if err := s.conn.Push(s.ctx, msg); err != nil {
		metricPushErrorTotal.Add(1)
		log.Debug().Err(err).Str("connection_id", s.conn.ID()).Msg("fanout_push_failed")
		return
	}
	metricDeliveredTotal.Add(1)
}
