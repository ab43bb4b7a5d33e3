package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionDuration)
	assert.Equal(t, 24*time.Hour, cfg.GuestUserTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_URL", "redis://cache.internal:6380/1")
	t.Setenv("GUEST_USER_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "redis", cfg.StorageType)
	assert.Equal(t, "redis://cache.internal:6380/1", cfg.RedisURL)
	assert.Equal(t, time.Hour, cfg.GuestUserTTL)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}
