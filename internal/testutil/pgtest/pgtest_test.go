package pgtest

import (
	"path/filepath"
	"testing"
)

func TestWithSearchPath(t *testing.T) {
	cases := []struct {
		dsn, want string
	}{
		{"postgres://u@h/db", "postgres://u@h/db?search_path=test_1"},
		{"postgres://u@h/db?sslmode=disable", "postgres://u@h/db?sslmode=disable&search_path=test_1"},
	}
	for _, tc := range cases {
		if got := withSearchPath(tc.dsn, "test_1"); got != tc.want {
			t.Fatalf("withSearchPath(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}

func TestSchemaDDLRejectsUnsafeNames(t *testing.T) {
	if _, err := schemaDDL("DROP SCHEMA %s", "x; DROP TABLE users"); err == nil {
		t.Fatal("expected unsafe schema name to be rejected")
	}
	got, err := schemaDDL("CREATE SCHEMA %s", "test_42")
	if err != nil {
		t.Fatalf("schemaDDL: %v", err)
	}
	if got != `CREATE SCHEMA "test_42"` {
		t.Fatalf("schemaDDL = %q", got)
	}
}

func TestFindMigrationWalksUp(t *testing.T) {
	p, err := findMigration("")
	if err != nil {
		t.Fatalf("findMigration: %v", err)
	}
	if filepath.Base(p) != initMigration {
		t.Fatalf("findMigration = %q", p)
	}
	if got, _ := findMigration("/opt/db"); got != filepath.Join("/opt/db", initMigration) {
		t.Fatalf("findMigration(dir) = %q", got)
	}
}
