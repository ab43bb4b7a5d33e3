package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lmartell/cipherduel/internal/notify"
)

// ChangeFeed forwards change hints published over Redis pub/sub into an
// in-process publisher. It is the read side of the storage layer's
// publishHint: hints travel through Redis so that a mutation on one server
// instance reaches subscribers connected to another.
type ChangeFeed struct {
	client *redis.Client
	sink   notify.Publisher
	logger *slog.Logger
	pubsub *redis.PubSub
}

// NewChangeFeed creates a feed that delivers hints into sink
func NewChangeFeed(client *redis.Client, sink notify.Publisher, logger *slog.Logger) *ChangeFeed {
	return &ChangeFeed{
		client: client,
		sink:   sink,
		logger: logger.With(slog.String("component", "changefeed")),
	}
}

// Run subscribes to every room's hint channel and forwards hints until the
// context is cancelled. Malformed messages are logged and skipped.
func (f *ChangeFeed) Run(ctx context.Context) error {
	f.pubsub = f.client.PSubscribe(ctx, hintChannelPattern())
	defer func() { _ = f.pubsub.Close() }()

	// Force the subscription to be established before we report running
	if _, err := f.pubsub.Receive(ctx); err != nil {
		return err
	}

	f.logger.Info("change feed started", slog.String("pattern", hintChannelPattern()))

	ch := f.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var hint notify.Hint
			if err := json.Unmarshal([]byte(msg.Payload), &hint); err != nil {
				f.logger.Warn("dropping malformed change hint",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()))
				continue
			}
			f.sink.Publish(hint)
		}
	}
}

// Close tears down the subscription, unblocking Run
func (f *ChangeFeed) Close() error {
	if f.pubsub != nil {
		return f.pubsub.Close()
	}
	return nil
}
