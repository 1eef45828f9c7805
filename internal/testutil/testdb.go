// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"labyrinth-server/internal/store"
	"labyrinth-server/internal/testutil/pgtest"
)

// OpenTestStore opens a Postgres store on a throwaway schema. See pgtest.Open
// for the environment it needs.
func OpenTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(pgtest.Open(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}
