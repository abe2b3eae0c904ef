package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinetix/internal/domain"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// InsertBatch issues one ticket per seat. A seat that is already sold for the
// show fails the whole batch with repository.ErrConflict.
func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.InsertBatch"

	if len(tickets) == 0 {
		return nil, nil
	}

	b := &pgx.Batch{}
	for i := range tickets {
		if tickets[i].ID == uuid.Nil {
			tickets[i].ID = uuid.New()
		}
		b.Queue(
			`INSERT INTO tickets (id, order_id, show_id, seat_row, seat_number)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			tickets[i].ID, tickets[i].OrderID, tickets[i].ShowID, tickets[i].SeatRow, tickets[i].SeatNumber,
		)
	}

	br := r.handle().SendBatch(ctx, b)
	defer br.Close()

	for i := range tickets {
		if err := br.QueryRow().Scan(&tickets[i].CreatedAt); err != nil {
			return nil, wrapDBErr(fmt.Sprintf("%s[%s]", op, tickets[i].Label()), err)
		}
	}

	return tickets, nil
}
