package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken      string        `env:"TELEGRAM_TOKEN,required"`
	APIBaseURL         string        `env:"API_BASE_URL,required"`
	APIKey             string        `env:"API_KEY"`
	AdminIDs           []int64       `env:"ADMIN_IDS" envSeparator:","`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"30m"`
	HTTPRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	// Local .env is a dev convenience, absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
