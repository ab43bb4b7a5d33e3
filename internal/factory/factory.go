package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/lmartell/cipherduel/internal/dependencies/clock"
	"github.com/lmartell/cipherduel/internal/dependencies/random"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/roomcode"
	"github.com/lmartell/cipherduel/internal/services/auth"
	"github.com/lmartell/cipherduel/internal/services/room"
	"github.com/lmartell/cipherduel/internal/storage"
	"github.com/lmartell/cipherduel/internal/storage/memory"
	redisstorage "github.com/lmartell/cipherduel/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Change hint fan-out
	Notifier *notify.Notifier

	// Services
	AuthService    *auth.Service
	RoomController *room.Controller

	// Redis-only plumbing
	changeFeed *redisstorage.ChangeFeed
	feedCancel context.CancelFunc
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired.
//
// With the redis backend, change hints travel over pub/sub; New starts a
// ChangeFeed goroutine forwarding them into the local notifier. Close stops
// it.
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()
	notifier := notify.New(logger)

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	var store storage.Storage
	var changeFeed *redisstorage.ChangeFeed
	var feedCancel context.CancelFunc

	switch storageType {
	case StorageTypeMemory:
		// The memory backend publishes hints straight into the notifier
		store = memory.New(clk, notifier)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, clk)
		if err != nil {
			return nil, err
		}
		store = redisStore

		changeFeed = redisstorage.NewChangeFeed(redisStore.Client(), notifier, logger)
		var feedCtx context.Context
		feedCtx, feedCancel = context.WithCancel(context.Background())
		go func() {
			if err := changeFeed.Run(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change feed stopped", slog.String("error", err.Error()))
			}
		}()
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, clk, rnd, notifier, authCfg)
	app.changeFeed = changeFeed
	app.feedCancel = feedCancel
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, notifier *notify.Notifier, authCfg auth.Config) *App {
	authService := auth.New(store, clk, authCfg)
	roomController := room.NewController(store, roomcode.NewGenerator(rnd), clk)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Notifier:       notifier,
		AuthService:    authService,
		RoomController: roomController,
	}
}

// Close releases background resources held by the app
func (a *App) Close() error {
	if a.feedCancel != nil {
		a.feedCancel()
	}
	var err error
	if a.changeFeed != nil {
		err = errors.Join(err, a.changeFeed.Close())
	}
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if closer, ok := a.Storage.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}
