package store

import (
	"context"
	"sync"
	"testing"

	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/testutil/pgtest"
)

func openStore(t *testing.T) (*Store, context.Context, func()) {
	t.Helper()
	st, err := New(pgtest.Open(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st, context.Background(), st.Close
}

func mustCreateUser(t *testing.T, st *Store, ctx context.Context, name string) string {
	t.Helper()
	u := User{Name: name}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

type recordingPublisher struct {
	mu        sync.Mutex
	mutations []fanout.Mutation
}

func (p *recordingPublisher) Publish(_ context.Context, m fanout.Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutations = append(p.mutations, m)
}

func (p *recordingPublisher) take() []fanout.Mutation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.mutations
	p.mutations = nil
	return out
}
