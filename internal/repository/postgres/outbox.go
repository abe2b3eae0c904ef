package postgresrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxMessage is a domain event waiting to be handed to the broker.
type OutboxMessage struct {
	ID          int64
	EventType   string
	AggregateID string
	Payload     []byte
	Attempts    int
}

type OutboxRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OutboxRepo) With(db DB) *OutboxRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OutboxRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Enqueue stores an event; callers pass the transaction that writes the state change.
func (r *OutboxRepo) Enqueue(ctx context.Context, eventType, aggregateID string, payload []byte) error {
	const op = "postgresrepo.OutboxRepo.Enqueue"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO payment_outbox (event_type, aggregate_id, payload)
		 VALUES ($1, $2, $3)`,
		eventType, aggregateID, payload,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Claim leases up to limit due rows for lease. Rows claimed by another
// dispatcher are skipped.
func (r *OutboxRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]OutboxMessage, error) {
	const op = "postgresrepo.OutboxRepo.Claim"

	rows, err := r.handle().Query(ctx,
		`UPDATE payment_outbox o
		 SET status = 'processing', next_retry = now() + make_interval(secs => $2), updated_at = now()
		 WHERE o.id IN (
			SELECT id FROM payment_outbox
			WHERE status IN ('pending', 'processing') AND next_retry <= now()
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING o.id, o.event_type, o.aggregate_id, o.payload, o.attempts`,
		limit, lease.Seconds(),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.EventType, &m.AggregateID, &m.Payload, &m.Attempts); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id int64) error {
	const op = "postgresrepo.OutboxRepo.MarkSent"

	_, err := r.handle().Exec(ctx,
		`UPDATE payment_outbox
		 SET status = 'sent', published_at = now(), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	const op = "postgresrepo.OutboxRepo.MarkFailed"

	_, err := r.handle().Exec(ctx,
		`UPDATE payment_outbox
		 SET status = 'pending', attempts = attempts + 1, next_retry = $2, updated_at = now()
		 WHERE id = $1`,
		id, nextRetry,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
