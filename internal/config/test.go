package config

import "github.com/caarlos0/env/v11"

// TestConfig drives the Postgres-backed tests. They skip when PostgresDSN is
// unset.
type TestConfig struct {
	PostgresDSN   string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	KeepSchema    bool   `env:"TEST_KEEP_SCHEMA" envDefault:"false"`
	MigrationsDir string `env:"TEST_MIGRATIONS_DIR"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
