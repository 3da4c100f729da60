package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

// EventBus fans clipboard events out to every node over Redis pub/sub. Each
// node's relay worker dispatches to the connections it holds.
type EventBus struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewEventBus(log *slog.Logger, rdb *redis.Client, channel string) *EventBus {
	return &EventBus{rdb: rdb, channel: channel, log: log}
}

func (b *EventBus) Publish(ctx context.Context, msg domain.BusMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe blocks, handing every payload to handler until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, []byte(msg.Payload)); err != nil {
				b.log.ErrorContext(ctx, "bus - subscribe - handler failed", "channel", b.channel, logging.Err(err))
			}
		}
	}
}
