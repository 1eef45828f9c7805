package store

import (
	"context"

	"labyrinth-server/internal/fanout"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const slotColumns = `id, session_id, slot_index, kind, user_id, display_name, ready, is_winner, game_finished, created_at`

func scanSlot(row pgx.Row) (PlayerSlot, error) {
	var (
		slot   PlayerSlot
		kind   string
		userID pgtype.Text
	)
	if err := row.Scan(&slot.ID, &slot.SessionID, &slot.Index, &kind, &userID, &slot.DisplayName, &slot.Ready, &slot.IsWinner, &slot.GameFinished, &slot.CreatedAt); err != nil {
		return PlayerSlot{}, mapNotFound(err)
	}
	slot.Kind = SlotKind(kind)
	slot.UserID = textVal(userID)
	return slot, nil
}

func collectSlots(rows pgx.Rows) ([]PlayerSlot, error) {
	defer rows.Close()
	out := []PlayerSlot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func insertSlot(ctx context.Context, q querier, slot *PlayerSlot) error {
	if slot.ID == "" {
		slot.ID = NewID()
	}
	return q.QueryRow(ctx,
		`INSERT INTO player_slots (id, session_id, slot_index, kind, user_id, display_name, ready, is_winner, game_finished)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING created_at`,
		slot.ID, slot.SessionID, slot.Index, string(slot.Kind), textParam(slot.UserID), slot.DisplayName,
		slot.Ready, slot.IsWinner, slot.GameFinished,
	).Scan(&slot.CreatedAt)
}

func updateSlot(ctx context.Context, q querier, slot PlayerSlot) (PlayerSlot, error) {
	return scanSlot(q.QueryRow(ctx,
		`UPDATE player_slots
		 SET slot_index = $2, kind = $3, user_id = $4, display_name = $5, ready = $6, is_winner = $7, game_finished = $8
		 WHERE id = $1
		 RETURNING `+slotColumns,
		slot.ID, slot.Index, string(slot.Kind), textParam(slot.UserID), slot.DisplayName,
		slot.Ready, slot.IsWinner, slot.GameFinished,
	))
}

func (s *Store) InsertSlot(ctx context.Context, slot *PlayerSlot) error {
	if err := insertSlot(ctx, s.Pool, slot); err != nil {
		return err
	}
	s.publish(ctx, EntityPlayerSlot, fanout.OpInsert, *slot)
	return nil
}

// ListSlots returns the session's slots in turn order.
func (s *Store) ListSlots(ctx context.Context, sessionID string) ([]PlayerSlot, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+slotColumns+` FROM player_slots WHERE session_id = $1 ORDER BY slot_index ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (s *Store) UpdateSlot(ctx context.Context, slot PlayerSlot) error {
	updated, err := updateSlot(ctx, s.Pool, slot)
	if err != nil {
		return err
	}
	s.publish(ctx, EntityPlayerSlot, fanout.OpUpdate, updated)
	return nil
}

// RemoveSlot deletes removed, rewrites the indices of moved and saves sess in
// one transaction. The (session_id, slot_index) constraint is deferred, so
// indices may collide until commit.
func (s *Store) RemoveSlot(ctx context.Context, removed PlayerSlot, moved []PlayerSlot, sess Session) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	deleted, err := scanSlot(tx.QueryRow(ctx, `DELETE FROM player_slots WHERE id = $1 RETURNING `+slotColumns, removed.ID))
	if err != nil {
		return err
	}
	saved := make([]PlayerSlot, 0, len(moved))
	for _, slot := range moved {
		out, err := updateSlot(ctx, tx, slot)
		if err != nil {
			return err
		}
		saved = append(saved, out)
	}
	updated, err := updateSession(ctx, tx, sess)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publish(ctx, EntityPlayerSlot, fanout.OpRemove, deleted)
	for _, slot := range saved {
		s.publish(ctx, EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	s.publish(ctx, EntitySession, fanout.OpUpdate, updated)
	return nil
}
