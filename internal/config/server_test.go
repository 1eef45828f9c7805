package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/labyrinth?sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if cfg.SessionPushWorkers != 4 {
		t.Fatalf("SessionPushWorkers = %d, want 4", cfg.SessionPushWorkers)
	}
}

func TestLoadServerRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerMemoryDriverNeedsNoDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
}

func TestLoadServerRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error for unknown driver")
	}
}

func TestLoadServerRequiresJWTSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error without JWT_SECRET")
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SESSION_PUSH_ENABLED", "true")
	t.Setenv("SESSION_PUSH_RETRY_MAX", "5")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if !cfg.SessionPushEnabled {
		t.Fatal("SessionPushEnabled = false, want true")
	}
	if cfg.SessionPushRetryMax != 5 {
		t.Fatalf("SessionPushRetryMax = %d, want 5", cfg.SessionPushRetryMax)
	}
	if cfg.ShutdownTimeoutSeconds != 3 {
		t.Fatalf("ShutdownTimeoutSeconds = %d, want 3", cfg.ShutdownTimeoutSeconds)
	}
}
