package orchestrator

import (
	"context"
	"fmt"
	"time"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"

	"github.com/rs/zerolog/log"
)

type turnContext struct {
	sess  store.Session
	slots []store.PlayerSlot
	inst  game.Instance
	turn  int
	owner store.PlayerSlot
}

type moveOutcome struct {
	moved    bool
	finished bool
	botNext  bool
}

// Move applies a human move with the configured bot delay.
func (o *Orchestrator) Move(ctx context.Context, sessionID string, move game.Move, actingUserID string) error {
	return o.MoveWithBotDelay(ctx, sessionID, move, actingUserID, o.cfg.BotDelay)
}

// MoveWithBotDelay applies move for actingUserID. Rejected moves leave the
// stored state untouched. Listeners run after the move is persisted; a bot
// answering with delay 0 has played before this returns.
func (o *Orchestrator) MoveWithBotDelay(ctx context.Context, sessionID string, move game.Move, actingUserID string, delay time.Duration) error {
	out, err := o.applyHumanMove(ctx, sessionID, move, actingUserID)
	if err != nil {
		metricMovesRejected.Add(1)
		return err
	}
	o.listeners.notify(ctx, sessionID, move)
	if !out.finished && out.botNext {
		o.runBots(ctx, sessionID, delay)
	}
	return nil
}

func (o *Orchestrator) applyHumanMove(ctx context.Context, sessionID string, move game.Move, actingUserID string) (moveOutcome, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	tc, err := o.loadTurn(ctx, sessionID)
	if err != nil {
		return moveOutcome{}, err
	}
	if tc.owner.Kind.IsBot() || tc.owner.UserID == "" || tc.owner.UserID != actingUserID {
		return moveOutcome{}, fmt.Errorf("%w: slot %d does not belong to the caller", ErrInvalidMove, tc.turn)
	}
	if move.PlayerIndex != tc.turn {
		return moveOutcome{}, fmt.Errorf("%w: player index %d, turn of %d", ErrInvalidMove, move.PlayerIndex, tc.turn)
	}
	if err := tc.inst.Move(move); err != nil {
		return moveOutcome{}, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	return o.persistMove(ctx, tc)
}

// loadTurn reads the session, its slots and the rules instance. Callers hold
// the session lock.
func (o *Orchestrator) loadTurn(ctx context.Context, sessionID string) (turnContext, error) {
	sess, err := o.loadSession(ctx, sessionID)
	if err != nil {
		return turnContext{}, err
	}
	if sess.Finished {
		return turnContext{}, ErrGameFinished
	}
	if !sess.Started {
		return turnContext{}, ErrGameNotStarted
	}
	inst, err := o.rules.BuildFromString(sess.State)
	if err != nil {
		return turnContext{}, fmt.Errorf("load state of session %s: %w", sessionID, err)
	}
	turn, ok := inst.TurnOwnerIndex()
	if !ok {
		return turnContext{}, fmt.Errorf("%w: no turn owner in session %s", ErrSessionNotFound, sessionID)
	}
	slots, err := o.repo.ListSlots(ctx, sessionID)
	if err != nil {
		return turnContext{}, err
	}
	owner, ok := slotAt(slots, turn)
	if !ok {
		return turnContext{}, fmt.Errorf("%w: no slot at turn index %d", ErrSessionNotFound, turn)
	}
	return turnContext{sess: sess, slots: slots, inst: inst, turn: turn, owner: owner}, nil
}

// persistMove stores tc.inst after a successful move and settles a win.
func (o *Orchestrator) persistMove(ctx context.Context, tc turnContext) (moveOutcome, error) {
	state, err := tc.inst.Stringify()
	if err != nil {
		return moveOutcome{}, err
	}
	tc.sess.State = state
	metricMovesApplied.Add(1)

	if winner, ok := tc.inst.WinnerIndex(); ok {
		winnerSlot, found := slotAt(tc.slots, winner)
		if !found {
			return moveOutcome{}, fmt.Errorf("winner index %d has no slot in session %s", winner, tc.sess.ID)
		}
		o.timers.cancel(tc.sess.ID)
		if err := o.repo.FinishSession(ctx, tc.sess, winnerSlot.ID); err != nil {
			return moveOutcome{}, err
		}
		metricSessionsFinished.Add(1)
		log.Info().
			Str("session_id", tc.sess.ID).
			Int("winner_index", winner).
			Str("winner_kind", string(winnerSlot.Kind)).
			Msg("session_finished")
		return moveOutcome{moved: true, finished: true}, nil
	}

	if err := o.repo.UpdateSession(ctx, tc.sess); err != nil {
		return moveOutcome{}, err
	}
	out := moveOutcome{moved: true}
	if next, ok := tc.inst.TurnOwnerIndex(); ok {
		if slot, found := slotAt(tc.slots, next); found {
			out.botNext = slot.Kind.IsBot()
		}
	}
	return out, nil
}
