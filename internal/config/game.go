package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	BotMoveDelayMS  int `env:"BOT_MOVE_DELAY_MS" envDefault:"500"`
	FanoutQueueSize int `env:"FANOUT_QUEUE_SIZE" envDefault:"256"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c GameConfig) BotMoveDelay() time.Duration {
	if c.BotMoveDelayMS < 0 {
		return 0
	}
	return time.Duration(c.BotMoveDelayMS) * time.Millisecond
}
