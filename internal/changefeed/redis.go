package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisFeed relays events over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisFeed constructs a feed on channel (DefaultChannel when empty).
func NewRedisFeed(client *redis.Client, channel string, logger *slog.Logger) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, channel: channel, logger: logger}
}

// Publish sends evt to every listener.
func (f *RedisFeed) Publish(ctx context.Context, evt Event) error {
	if f == nil || f.client == nil {
		return errors.New("changefeed: redis client not configured")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

// Listen blocks until ctx is cancelled. The go-redis subscription reconnects on its own.
func (f *RedisFeed) Listen(ctx context.Context, sink Sink) error {
	if f == nil || f.client == nil {
		return errors.New("changefeed: redis client not configured")
	}
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	sink(RefreshEvent())
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("changefeed: redis subscription closed")
			}
			evt, err := Decode([]byte(msg.Payload))
			if err != nil {
				f.logger.Warn("change feed payload", slog.Any("error", err))
				continue
			}
			sink(evt)
		}
	}
}
