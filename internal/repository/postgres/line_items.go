package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinetix/internal/domain"
)

type LineItemRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LineItemRepo) With(db DB) *LineItemRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LineItemRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *LineItemRepo) InsertBatch(ctx context.Context, items []domain.LineItem) error {
	const op = "postgresrepo.LineItemRepo.InsertBatch"

	if len(items) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(
			`INSERT INTO order_items (order_id, ticket_id, concession_id, quantity, subtotal)
			 VALUES ($1, $2, $3, $4, $5)`,
			it.OrderID, it.TicketID, it.ConcessionID, it.Quantity, it.Subtotal,
		)
	}

	br := r.handle().SendBatch(ctx, b)
	defer br.Close()

	for range items {
		if _, err := br.Exec(); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return nil
}
