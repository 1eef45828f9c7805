package config

import (
	"errors"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type ServerConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER"`

	SessionPushEnabled      bool   `env:"SESSION_PUSH_ENABLED" envDefault:"false"`
	SessionPushConfigPath   string `env:"SESSION_PUSH_CONFIG_PATH"`
	SessionPushConfigJSON   string `env:"SESSION_PUSH_CONFIG_JSON"`
	SessionPushConfigReload int    `env:"SESSION_PUSH_CONFIG_RELOAD_MS" envDefault:"1000"`
	SessionPushWorkers      int    `env:"SESSION_PUSH_WORKERS" envDefault:"4"`
	SessionPushRetryMax     int    `env:"SESSION_PUSH_RETRY_MAX" envDefault:"3"`
	SessionPushRetryBaseMS  int    `env:"SESSION_PUSH_RETRY_BASE_MS" envDefault:"500"`

	ShutdownTimeoutSeconds int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return cfg, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return cfg, errors.New("STORE_DRIVER must be postgres or memory")
	}
	return cfg, nil
}
