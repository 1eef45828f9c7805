package store

import (
	"context"
	"fmt"

	"labyrinth-server/internal/fanout"

	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, visibility, owner_id, state, setup, started, finished, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess Session
		vis  string
	)
	if err := row.Scan(&sess.ID, &vis, &sess.OwnerID, &sess.State, &sess.Setup, &sess.Started, &sess.Finished, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return Session{}, mapNotFound(err)
	}
	sess.Visibility = Visibility(vis)
	return sess, nil
}

// CreateSession inserts sess and, when owner is non-nil, its first slot in one
// transaction. IDs and timestamps are filled in place.
func (s *Store) CreateSession(ctx context.Context, sess *Session, owner *PlayerSlot) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO sessions (id, visibility, owner_id, state, setup, started, finished)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`,
		sess.ID, string(sess.Visibility), sess.OwnerID, sess.State, sess.Setup, sess.Started, sess.Finished,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return err
	}
	if owner != nil {
		owner.SessionID = sess.ID
		if err := insertSlot(ctx, tx, owner); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publish(ctx, EntitySession, fanout.OpInsert, *sess)
	if owner != nil {
		s.publish(ctx, EntityPlayerSlot, fanout.OpInsert, *owner)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	return scanSession(s.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (s *Store) UpdateSession(ctx context.Context, sess Session) error {
	updated, err := updateSession(ctx, s.Pool, sess)
	if err != nil {
		return err
	}
	s.publish(ctx, EntitySession, fanout.OpUpdate, updated)
	return nil
}

func updateSession(ctx context.Context, q querier, sess Session) (Session, error) {
	return scanSession(q.QueryRow(ctx,
		`UPDATE sessions
		 SET visibility = $2, owner_id = $3, state = $4, setup = $5, started = $6, finished = $7, updated_at = now()
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		sess.ID, string(sess.Visibility), sess.OwnerID, sess.State, sess.Setup, sess.Started, sess.Finished,
	))
}

// SaveLobby persists a session edit together with the slots it touched.
func (s *Store) SaveLobby(ctx context.Context, sess Session, slots []PlayerSlot) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updated, err := updateSession(ctx, tx, sess)
	if err != nil {
		return err
	}
	saved := make([]PlayerSlot, 0, len(slots))
	for _, slot := range slots {
		out, err := updateSlot(ctx, tx, slot)
		if err != nil {
			return err
		}
		saved = append(saved, out)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publish(ctx, EntitySession, fanout.OpUpdate, updated)
	for _, slot := range saved {
		s.publish(ctx, EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	return nil
}

// FinishSession stores the final state, marks every slot finished and flags
// winnerSlotID (none when empty) as the winner.
func (s *Store) FinishSession(ctx context.Context, sess Session, winnerSlotID string) error {
	sess.Started = true
	sess.Finished = true
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updated, err := updateSession(ctx, tx, sess)
	if err != nil {
		return err
	}
	rows, err := tx.Query(ctx,
		`UPDATE player_slots
		 SET game_finished = true, is_winner = (id = $2)
		 WHERE session_id = $1
		 RETURNING `+slotColumns,
		sess.ID, winnerSlotID,
	)
	if err != nil {
		return err
	}
	slots, err := collectSlots(rows)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publish(ctx, EntitySession, fanout.OpUpdate, updated)
	for _, slot := range slots {
		s.publish(ctx, EntityPlayerSlot, fanout.OpUpdate, slot)
	}
	return nil
}

// DeleteSession removes the session and its slots. Removes are published
// with the rows as they were before deletion.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `DELETE FROM player_slots WHERE session_id = $1 RETURNING `+slotColumns, id)
	if err != nil {
		return err
	}
	slots, err := collectSlots(rows)
	if err != nil {
		return err
	}
	sess, err := scanSession(tx.QueryRow(ctx, `DELETE FROM sessions WHERE id = $1 RETURNING `+sessionColumns, id))
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	for _, slot := range slots {
		s.publish(ctx, EntityPlayerSlot, fanout.OpRemove, slot)
	}
	s.publish(ctx, EntitySession, fanout.OpRemove, sess)
	return nil
}

func (s *Store) ListSessions(ctx context.Context, q SessionQuery) ([]Session, error) {
	var w whereBuilder
	if q.Visibility != "" {
		w.add("visibility = $%d", string(q.Visibility))
	}
	if q.OwnerID != "" {
		w.add("owner_id = $%d", q.OwnerID)
	}
	if q.ExcludeOwnerID != "" {
		w.add("owner_id <> $%d", q.ExcludeOwnerID)
	}
	if q.OwnerIDs != nil {
		w.add("owner_id = ANY($%d)", q.OwnerIDs)
	}
	if q.Started != nil {
		w.add("started = $%d", *q.Started)
	}
	if q.Finished != nil {
		w.add("finished = $%d", *q.Finished)
	}
	sql := `SELECT ` + sessionColumns + ` FROM sessions` + w.clause() + ` ORDER BY created_at DESC, id DESC`
	args := w.args
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
