package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel change notifications are published on.
const DefaultChannel = "najdeno:changes"

// RedisBus fans change notifications out to every instance through Redis
// pub/sub. The payload is the name of the collection that changed.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus creates a bus on DefaultChannel.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, channel: DefaultChannel}
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, collection string) error {
	if err := b.client.Publish(ctx, b.channel, collection).Err(); err != nil {
		return fmt.Errorf("publishing change for %s: %w", collection, err)
	}
	return nil
}

// Listen refreshes hub's subscribers for every notification until ctx is
// cancelled.
func (b *RedisBus) Listen(ctx context.Context, hub *Hub) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	slog.Info("listening for changes", "channel", b.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := hub.Refresh(ctx, msg.Payload); err != nil {
				slog.Error("failed to refresh subscribers", "collection", msg.Payload, "error", err)
			}
		}
	}
}
