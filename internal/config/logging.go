package config

import "github.com/caarlos0/env/v11"

type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	Service     string `env:"LOG_SERVICE" envDefault:"labyrinth-server"`

	// File, when set, receives a copy of every line. It is rotated once it
	// reaches MaxMB and the newest KeepRotated backups are kept next to it.
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	KeepRotated int    `env:"LOG_KEEP_ROTATED" envDefault:"1"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.KeepRotated < 1 {
		cfg.KeepRotated = 1
	}
	return cfg, nil
}
