package store

import (
	"context"
	"errors"
	"time"

	"labyrinth-server/internal/fanout"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Publisher receives every committed session and slot write.
type Publisher interface {
	Publish(ctx context.Context, m fanout.Mutation)
}

// Store wraps DB access.
type Store struct {
	Pool *pgxpool.Pool
	pub  Publisher
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

// SetPublisher must be called before the store is shared.
func (s *Store) SetPublisher(p Publisher) {
	s.pub = p
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) publish(ctx context.Context, entity string, op fanout.Operation, value any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, fanout.Mutation{Entity: entity, Operation: op, Value: value})
}
