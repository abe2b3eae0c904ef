package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/redis/go-redis/v9"
)

// OrderStatusPubSub fans order status events out to every instance.
type OrderStatusPubSub struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

func NewOrderStatusPubSub(rdb *redis.Client, logger *slog.Logger) *OrderStatusPubSub {
	return &OrderStatusPubSub{
		rdb:     rdb,
		channel: ChannelOrderStatus(),
		logger:  logger,
	}
}

func (p *OrderStatusPubSub) PublishOrderStatus(ctx context.Context, ev domain.OrderStatusEvent) error {
	const op = "redis.OrderStatusPubSub.PublishOrderStatus"

	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe blocks, calling handler for each event, until ctx is done.
func (p *OrderStatusPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev domain.OrderStatusEvent)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.OrderStatusEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil || ev.OrderID == "" {
				p.logger.Warn("dropping malformed order status message", "payload", m.Payload)
				continue
			}
			handler(ctx, ev)
		}
	}
}
