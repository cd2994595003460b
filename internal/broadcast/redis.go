package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a Channel backed by Redis PUBLISH/SUBSCRIBE on a single channel
// name. The client is owned by the caller.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis wraps client. An empty channel name means DefaultChannel.
func NewRedis(client *redis.Client, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

// Publish encodes e and publishes it.
func (r *Redis) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe starts a SUBSCRIBE and forwards decoded events to h on a
// dedicated goroutine. Undecodable messages are logged and skipped.
func (r *Redis) Subscribe(ctx context.Context, h Handler) (func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channel)

	// Wait for confirmation so that publishes after Subscribe returns are seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w", r.channel, err)
	}

	msgs := pubsub.Channel()
	go func() {
		for msg := range msgs {
			e, err := Decode([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("dropping malformed broadcast", "channel", r.channel, "error", err)
				continue
			}
			h(e)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				r.logger.Debug("redis unsubscribe", "error", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}
