package broadcast

import (
	"context"
	"log/slog"
)

// Handler receives events delivered by a Channel.
type Handler func(Event)

// Channel is the opaque pub/sub contract.
type Channel interface {
	// Publish sends an event to every subscriber.
	Publish(ctx context.Context, e Event) error

	// Subscribe registers h until the returned func is called or ctx ends.
	Subscribe(ctx context.Context, h Handler) (unsubscribe func(), err error)
}

// Notify publishes e and logs, never returns, any failure. Publishing is
// fire-and-forget for the board's writers. A nil channel is a no-op.
func Notify(ctx context.Context, ch Channel, e Event, logger *slog.Logger) {
	if ch == nil {
		return
	}
	if err := ch.Publish(ctx, e); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("broadcast publish failed", "event", e.Name, "error", err)
	}
}
