// Package pgtest provisions throwaway Postgres schemas for tests. It does not
// depend on the store so the store's own tests can use it.
package pgtest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"labyrinth-server/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const initMigration = "000001_init.up.sql"

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open creates a fresh schema with the init migration applied and returns a
// DSN whose search_path points at it. The schema is dropped when the test
// ends unless TEST_KEEP_SCHEMA is set. The test is skipped when
// TEST_POSTGRES_DSN is unset.
func Open(t *testing.T) string {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	if err := execDDL(cfg.PostgresDSN, "CREATE SCHEMA %s", schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if cfg.KeepSchema {
			t.Logf("kept test schema %s", schema)
			return
		}
		_ = execDDL(cfg.PostgresDSN, "DROP SCHEMA %s CASCADE", schema)
	})

	dsn := withSearchPath(cfg.PostgresDSN, schema)
	if err := migrate(dsn, cfg.MigrationsDir); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return dsn
}

func migrate(dsn, dir string) error {
	path, err := findMigration(dir)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(context.Background(), string(b))
	return err
}

// findMigration looks in dir when given, else walks up from the working
// directory to the repository's migrations folder.
func findMigration(dir string) (string, error) {
	if dir != "" {
		return filepath.Join(dir, initMigration), nil
	}
	cur, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(cur, "migrations", initMigration)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", fmt.Errorf("%s not found from %s", initMigration, cur)
}

func execDDL(dsn, format, schema string) error {
	stmt, err := schemaDDL(format, schema)
	if err != nil {
		return err
	}
	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return err
	}
	defer base.Close()
	_, err = base.Exec(context.Background(), stmt)
	return err
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !schemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
