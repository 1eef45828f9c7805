package config

import "github.com/caarlos0/env/v11"

type WatchConfig struct {
	WSURL     string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	SessionID string `env:"SESSION_ID,required,notEmpty"`
	AuthToken string `env:"AUTH_TOKEN,required,notEmpty"`
	Players   bool   `env:"WATCH_PLAYERS" envDefault:"true"`
}

func LoadWatch() (WatchConfig, error) {
	var cfg WatchConfig
	err := env.Parse(&cfg)
	return cfg, err
}
