package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirinyoku/cinetix/internal/domain"
)

// Source is a cross-instance event feed, such as the redis channel.
type Source interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, ev domain.OrderStatusEvent)) error
}

// Relay forwards a Source into the hub, resubscribing after transient failures.
type Relay struct {
	src     Source
	hub     *Hub
	logger  *slog.Logger
	backoff time.Duration
}

func NewRelay(src Source, hub *Hub, logger *slog.Logger) *Relay {
	return &Relay{src: src, hub: hub, logger: logger, backoff: time.Second}
}

func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.src.Subscribe(ctx, func(ctx context.Context, ev domain.OrderStatusEvent) {
			if err := r.hub.PublishOrderStatus(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("relay order status failed", "order_id", ev.OrderID, "error", err)
			}
		})
		if ctx.Err() != nil {
			return nil
		}

		r.logger.Warn("order status subscription ended, resubscribing", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff):
		}
	}
}
