// Package ledger keeps the win/loss tally of human players.
package ledger

import (
	"context"
	"expvar"

	"labyrinth-server/internal/game"
	"labyrinth-server/internal/store"

	"github.com/rs/zerolog/log"
)

var metricOutcomesRecorded = expvar.NewInt("ledger_outcomes_recorded_total")

type Source interface {
	GetSession(ctx context.Context, id string) (store.Session, error)
	ListSlots(ctx context.Context, sessionID string) ([]store.PlayerSlot, error)
}

type Recorder interface {
	RecordOutcome(ctx context.Context, winnerID string, loserIDs []string) error
}

// Ledger is a move listener. Once a move finishes a session with a winner it
// credits the winning human and debits every other human. Bots are not
// tallied, and sessions aborted without a winner are skipped.
type Ledger struct {
	Source   Source
	Recorder Recorder
}

func New(src Source, rec Recorder) *Ledger {
	return &Ledger{Source: src, Recorder: rec}
}

func (l *Ledger) OnMove(ctx context.Context, sessionID string, _ game.Move) {
	if err := l.Settle(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("ledger_settle_failed")
	}
}

// Settle records the outcome of a finished session. It does nothing for a
// session still in play.
func (l *Ledger) Settle(ctx context.Context, sessionID string) error {
	sess, err := l.Source.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Finished {
		return nil
	}
	slots, err := l.Source.ListSlots(ctx, sessionID)
	if err != nil {
		return err
	}
	winnerID, losers, ok := outcome(slots)
	if !ok {
		return nil
	}
	if err := l.Recorder.RecordOutcome(ctx, winnerID, losers); err != nil {
		return err
	}
	metricOutcomesRecorded.Add(1)
	log.Info().
		Str("session_id", sessionID).
		Str("winner_id", winnerID).
		Int("losers", len(losers)).
		Msg("ledger_outcome_recorded")
	return nil
}

// outcome splits human slots into the winner and the rest. winnerID is empty
// when a bot won; ok is false when nobody won or no human played.
func outcome(slots []store.PlayerSlot) (winnerID string, losers []string, ok bool) {
	won := false
	for _, s := range slots {
		if s.IsWinner {
			won = true
		}
		if s.Kind.IsBot() || s.UserID == "" {
			continue
		}
		if s.IsWinner {
			winnerID = s.UserID
		} else {
			losers = append(losers, s.UserID)
		}
	}
	if !won || (winnerID == "" && len(losers) == 0) {
		return "", nil, false
	}
	return winnerID, losers, true
}
