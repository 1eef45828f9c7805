package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	return s.Pool.QueryRow(ctx,
		`INSERT INTO users (id, name) VALUES ($1,$2) RETURNING created_at`,
		u.ID, u.Name,
	).Scan(&u.CreatedAt)
}

// EnsureUser registers a user seen in a verified token, refreshing the
// display name when it changed.
func (s *Store) EnsureUser(ctx context.Context, id, name string) (User, error) {
	var u User
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO users (id, name) VALUES ($1,$2)
		 ON CONFLICT (id) DO UPDATE SET name = CASE WHEN EXCLUDED.name = '' THEN users.name ELSE EXCLUDED.name END
		 RETURNING id, name, games_won, games_lost, created_at`,
		id, name,
	).Scan(&u.ID, &u.Name, &u.GamesWon, &u.GamesLost, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, games_won, games_lost, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.GamesWon, &u.GamesLost, &u.CreatedAt)
	if err != nil {
		return User{}, mapNotFound(err)
	}
	return u, nil
}

// AddFriendship records a friend request; accepted links count both ways.
func (s *Store) AddFriendship(ctx context.Context, userID, friendID string, accepted bool) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO friendships (user_id, friend_id, accepted) VALUES ($1,$2,$3)
		 ON CONFLICT (user_id, friend_id) DO UPDATE SET accepted = EXCLUDED.accepted`,
		userID, friendID, accepted,
	)
	return err
}

func (s *Store) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = $1 AND accepted
		 UNION
		 SELECT user_id FROM friendships WHERE friend_id = $1 AND accepted`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// RecordOutcome bumps the win counter of winnerID and the loss counter of
// every loser in one transaction.
func (s *Store) RecordOutcome(ctx context.Context, winnerID string, loserIDs []string) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if winnerID != "" {
		if _, err := tx.Exec(ctx, `UPDATE users SET games_won = games_won + 1 WHERE id = $1`, winnerID); err != nil {
			return err
		}
	}
	if len(loserIDs) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE users SET games_lost = games_lost + 1 WHERE id = ANY($1)`, loserIDs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, games_won, games_lost FROM users
		 WHERE games_won + games_lost > 0
		 ORDER BY games_won DESC, games_lost ASC, name ASC, id ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.GamesWon, &e.GamesLost); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
