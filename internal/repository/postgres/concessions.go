package postgresrepo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinetix/internal/domain"
)

type ConcessionRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ConcessionRepo) With(db DB) *ConcessionRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ConcessionRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// ByIDs returns the active concessions among ids, keyed by id.
func (r *ConcessionRepo) ByIDs(ctx context.Context, ids []string) (map[string]domain.Concession, error) {
	const op = "postgresrepo.ConcessionRepo.ByIDs"

	out := make(map[string]domain.Concession, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, name, price, active
		 FROM concessions
		 WHERE id = ANY($1) AND active`,
		ids,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Concession
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.Active); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
