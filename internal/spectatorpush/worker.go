package spectatorpush

import (
	"context"
	"errors"
	"time"

	"labyrinth-server/internal/spectatorpush/platforms"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	retryJitter      = 0.2
	maxRetryInterval = time.Minute
)

func (m *Manager) worker(ctx context.Context, lane <-chan delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case d := <-lane:
			metricPushQueueLen.Add(-1)
			m.deliver(ctx, d)
		}
	}
}

// deliver sends d through its target's circuit breaker. Temporary failures
// and an open circuit schedule a retry; rejections the endpoint will repeat
// are dropped at once.
func (m *Manager) deliver(ctx context.Context, d delivery) {
	adapter := m.adapters[d.target.Platform]
	if adapter == nil {
		metricPushDroppedTotal.Add(1)
		log.Warn().Str("platform", d.target.Platform).Msg("session_push_unknown_platform")
		return
	}
	to := platforms.Target{Endpoint: d.target.Endpoint, Secret: d.target.Secret}
	_, err := m.breaker(d.target).Execute(func() (interface{}, error) {
		return nil, adapter.Deliver(ctx, to, d.notice)
	})
	switch {
	case err == nil:
		metricPushSentTotal.Add(1)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metricPushCircuitOpenTotal.Add(1)
		m.retryLater(d, err)
	case platforms.IsPermanent(err):
		metricPushFailedTotal.Add(1)
		m.drop(d, err)
	default:
		metricPushFailedTotal.Add(1)
		m.retryLater(d, err)
	}
}

func (m *Manager) retryLater(d delivery, err error) {
	if d.attempt >= m.cfg.RetryMax {
		m.drop(d, err)
		return
	}
	if d.retry == nil {
		d.retry = &backoff.ExponentialBackOff{
			InitialInterval:     m.cfg.RetryBase,
			RandomizationFactor: retryJitter,
			Multiplier:          2,
			MaxInterval:         maxRetryInterval,
		}
		d.retry.Reset()
	}
	d.attempt++
	metricPushRetryTotal.Add(1)
	m.retryQ.Enqueue(d, d.retry.NextBackOff())
}

func (m *Manager) drop(d delivery, err error) {
	metricPushRetryDroppedTotal.Add(1)
	log.Warn().Err(err).
		Str("platform", d.target.Platform).
		Str("session_id", d.event.SessionID).
		Str("event", d.event.EventType).
		Int("attempts", d.attempt+1).
		Msg("session_push_dropped")
}

// breaker returns the circuit breaker of target, creating it on first use.
// Permanent rejections prove the endpoint is up and do not count as failures.
func (m *Manager) breaker(target PushTarget) *gobreaker.CircuitBreaker {
	key := targetKey(target)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[key]; ok {
		return cb
	}
	threshold := uint32(m.cfg.FailureThreshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     m.cfg.CircuitOpenDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || platforms.IsPermanent(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Info().
				Str("platform", target.Platform).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("session_push_circuit_changed")
		},
	})
	m.breakers[key] = cb
	return cb
}
