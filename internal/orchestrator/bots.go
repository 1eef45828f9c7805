package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"

	"github.com/rs/zerolog/log"
)

func strategyFor(kind store.SlotKind) (game.Strategy, bool) {
	switch kind {
	case store.SlotWeakBot:
		return game.StrategyWeak, true
	case store.SlotMediumBot:
		return game.StrategyMedium, true
	case store.SlotStrongBot:
		return game.StrategyStrong, true
	default:
		return "", false
	}
}

// BotKind maps a tier name ("weak", "medium_bot", ...) to its slot kind.
func BotKind(tier string) (store.SlotKind, error) {
	switch tier {
	case "weak", string(store.SlotWeakBot):
		return store.SlotWeakBot, nil
	case "medium", string(store.SlotMediumBot):
		return store.SlotMediumBot, nil
	case "strong", string(store.SlotStrongBot):
		return store.SlotStrongBot, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBotTier, tier)
	}
}

const (
	botRetryLimit = 3
	botRetryDelay = 200 * time.Millisecond
)

// runBots plays consecutive bot turns. With delay 0 they run before runBots
// returns; otherwise each one waits on a timer. The chain outlives the
// triggering request.
func (o *Orchestrator) runBots(ctx context.Context, sessionID string, delay time.Duration) {
	if delay > 0 {
		o.scheduleBot(sessionID, delay, 0)
		return
	}
	ctx = context.WithoutCancel(ctx)
	for {
		out, err := o.botStep(ctx, sessionID)
		if err != nil {
			o.botFailed(sessionID, delay, 1, err)
			return
		}
		if out.finished || !out.botNext {
			return
		}
	}
}

func (o *Orchestrator) scheduleBot(sessionID string, delay time.Duration, failures int) {
	o.timers.schedule(sessionID, delay, func() {
		out, err := o.botStep(o.ctx, sessionID)
		if err != nil {
			o.botFailed(sessionID, delay, failures+1, err)
			return
		}
		if !out.finished && out.botNext {
			o.scheduleBot(sessionID, delay, 0)
		}
	})
}

// botFailed retries a bot turn after an error and aborts the session once
// botRetryLimit attempts have failed. Stale turns are dropped.
func (o *Orchestrator) botFailed(sessionID string, delay time.Duration, failures int, err error) {
	if errors.Is(err, errStaleBotTurn) {
		log.Debug().Str("session_id", sessionID).Err(err).Msg("bot_turn_skipped")
		return
	}
	if o.ctx.Err() != nil {
		return
	}
	log.Error().Str("session_id", sessionID).Int("failures", failures).Err(err).Msg("bot_turn_failed")
	if failures <= botRetryLimit {
		retry := max(delay, botRetryDelay*time.Duration(failures))
		o.scheduleBot(sessionID, retry, failures)
		return
	}
	o.abortStuck(sessionID, err)
}

// botStep plays one bot turn and notifies listeners.
func (o *Orchestrator) botStep(ctx context.Context, sessionID string) (moveOutcome, error) {
	if err := o.ctx.Err(); err != nil {
		return moveOutcome{}, err
	}
	out, move, err := o.playBotTurn(ctx, sessionID)
	if err != nil {
		return moveOutcome{}, err
	}
	if out.moved {
		o.listeners.notify(ctx, sessionID, move)
	}
	return out, nil
}

// abortStuck finishes a started session whose bot turn keeps failing.
func (o *Orchestrator) abortStuck(sessionID string, cause error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	tc, err := o.loadTurn(o.ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("bot_turn_abandoned")
		return
	}
	if _, _, err := o.abort(o.ctx, tc, cause); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("bot_turn_abandoned")
	}
}

func (o *Orchestrator) playBotTurn(ctx context.Context, sessionID string) (moveOutcome, game.Move, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	tc, err := o.loadTurn(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrGameFinished) || errors.Is(err, ErrGameNotStarted) {
			return moveOutcome{}, game.Move{}, fmt.Errorf("%w: %v", errStaleBotTurn, err)
		}
		return moveOutcome{}, game.Move{}, err
	}
	strategy, ok := strategyFor(tc.owner.Kind)
	if !ok {
		return moveOutcome{}, game.Move{}, fmt.Errorf("%w: slot %d is not a bot", errStaleBotTurn, tc.turn)
	}

	move, err := o.generateAndApply(tc, strategy)
	if err != nil {
		metricBotMoveFailures.Add(1)
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Int("slot_index", tc.turn).
			Str("strategy", string(strategy)).
			Msg("bot_move_failed")
		if strategy != game.StrategyWeak {
			if tc, err = o.loadTurn(ctx, sessionID); err != nil {
				return moveOutcome{}, game.Move{}, err
			}
			move, err = o.generateAndApply(tc, game.StrategyWeak)
		}
		if err != nil {
			return o.abort(ctx, tc, err)
		}
	}

	metricBotMoves.Add(1)
	out, err := o.persistMove(ctx, tc)
	return out, move, err
}

func (o *Orchestrator) generateAndApply(tc turnContext, strategy game.Strategy) (game.Move, error) {
	gen, err := o.rules.MoveGenerator(strategy)
	if err != nil {
		return game.Move{}, err
	}
	move, err := gen(tc.inst)
	if err != nil {
		return game.Move{}, fmt.Errorf("generate move: %w", err)
	}
	if move.PlayerIndex != tc.turn {
		return game.Move{}, fmt.Errorf("generated move for player %d on turn %d", move.PlayerIndex, tc.turn)
	}
	if err := tc.inst.Move(move); err != nil {
		return game.Move{}, fmt.Errorf("apply generated move: %w", err)
	}
	return move, nil
}

// abort finishes a session whose bot cannot move, without a winner.
func (o *Orchestrator) abort(ctx context.Context, tc turnContext, cause error) (moveOutcome, game.Move, error) {
	o.timers.cancel(tc.sess.ID)
	if err := o.repo.FinishSession(ctx, tc.sess, ""); err != nil {
		return moveOutcome{}, game.Move{}, fmt.Errorf("abort session after bot failure (%v): %w", cause, err)
	}
	metricSessionsAborted.Add(1)
	log.Error().
		Err(cause).
		Str("session_id", tc.sess.ID).
		Int("slot_index", tc.turn).
		Msg("session_aborted")
	return moveOutcome{finished: true}, game.Move{}, nil
}
