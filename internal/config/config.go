package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration, loaded from the environment.
type Config struct {
	Port        int        `env:"PORT" envDefault:"8080"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	StorageType string     `env:"STORAGE_TYPE" envDefault:"memory"`

	// Redis settings, used when STORAGE_TYPE=redis
	RedisURL          string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"168h"`
	GuestUserTTL    time.Duration `env:"GUEST_USER_TTL" envDefault:"24h"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
