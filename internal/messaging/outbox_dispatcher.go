package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/kirinyoku/cinetix/internal/metrics"
	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
)

type OutboxStore interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]postgresrepo.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error
}

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	Lease     time.Duration
}

// OutboxDispatcher moves committed payment events from the outbox table to the broker.
type OutboxDispatcher struct {
	store     OutboxStore
	publisher Publisher
	cfg       DispatcherConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewOutboxDispatcher(
	store OutboxStore,
	publisher Publisher,
	cfg DispatcherConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OutboxDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}

	return &OutboxDispatcher{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run dispatches on every tick until ctx is done.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox dispatch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce publishes one claimed batch and returns how many rows were sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	rows, err := d.store.Claim(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		if err := d.publishOne(ctx, row); err != nil {
			d.logger.Warn("publish outbox event failed",
				"row_id", row.ID,
				"event_type", row.EventType,
				"attempts", row.Attempts+1,
				"error", err,
			)
			continue
		}
		sent++
	}

	return sent, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, row postgresrepo.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := d.publisher.Publish(pubCtx, Message{
		ID:         strconv.FormatInt(row.ID, 10),
		RoutingKey: row.EventType,
		Body:       row.Payload,
	})
	if err != nil {
		d.metrics.OutboxPublished("error")
		if markErr := d.store.MarkFailed(ctx, row.ID, d.now().Add(retryDelay(row.Attempts+1))); markErr != nil {
			d.logger.Error("mark outbox row failed", "row_id", row.ID, "error", markErr)
		}
		return err
	}

	d.metrics.OutboxPublished("ok")

	return d.store.MarkSent(ctx, row.ID)
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
