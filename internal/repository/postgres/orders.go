package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/repository"
)

const orderColumns = `id, COALESCE(user_id, ''), show_id, total_amount, payment_method,
	contact_name, contact_email, contact_phone,
	COALESCE(mp_preference_id, ''), COALESCE(mp_init_point, ''), COALESCE(mp_sandbox_init_point, ''),
	COALESCE(mp_payment_id, ''), COALESCE(mp_payment_status, ''),
	created_at, updated_at`

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                     domain.Order
		prefID, init, sandbox string
		status                string
	)

	err := row.Scan(
		&o.ID, &o.UserID, &o.ShowID, &o.TotalAmount, &o.PaymentMethod,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&prefID, &init, &sandbox,
		&o.PaymentID, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prefID != "" {
		o.Preference = &domain.Preference{ID: prefID, InitPoint: init, SandboxInitPoint: sandbox}
	}
	o.PaymentStatus = domain.PaymentStatus(status)

	return &o, nil
}

// Insert stores a new order in pending state and fills in its generated fields.
func (r *OrderRepo) Insert(ctx context.Context, o *domain.Order) error {
	const op = "postgresrepo.OrderRepo.Insert"

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	var userID *string
	if o.UserID != "" {
		userID = &o.UserID
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO orders (id, user_id, show_id, total_amount, payment_method,
			contact_name, contact_email, contact_phone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		o.ID, userID, o.ShowID, o.TotalAmount, o.PaymentMethod,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgresrepo.OrderRepo.Get"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

// GetForUpdate reads an order and locks its row until the surrounding transaction ends.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgresrepo.OrderRepo.GetForUpdate"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) FindByPreferenceID(ctx context.Context, preferenceID string) (*domain.Order, error) {
	const op = "postgresrepo.OrderRepo.FindByPreferenceID"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE mp_preference_id = $1`,
		preferenceID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	const op = "postgresrepo.OrderRepo.FindByPaymentID"

	o, err := scanOrder(r.handle().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE mp_payment_id = $1
		 ORDER BY updated_at DESC LIMIT 1`,
		paymentID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) SavePreference(ctx context.Context, id uuid.UUID, pref domain.Preference) error {
	const op = "postgresrepo.OrderRepo.SavePreference"

	tag, err := r.handle().Exec(ctx,
		`UPDATE orders
		 SET mp_preference_id = $2, mp_init_point = $3, mp_sandbox_init_point = $4, updated_at = now()
		 WHERE id = $1`,
		id, pref.ID, nullIfEmpty(pref.InitPoint), nullIfEmpty(pref.SandboxInitPoint),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

// ApplyPayment writes the gateway's authoritative payment data onto the order.
func (r *OrderRepo) ApplyPayment(ctx context.Context, id uuid.UUID, upd domain.PaymentUpdate) error {
	const op = "postgresrepo.OrderRepo.ApplyPayment"

	tag, err := r.handle().Exec(ctx,
		`UPDATE orders
		 SET mp_payment_id = $2, mp_payment_status = $3, payment_method = $4, updated_at = now()
		 WHERE id = $1`,
		id, upd.PaymentID, string(upd.Status), upd.PaymentMethod,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

// GetDetails returns the order together with its tickets and line items.
func (r *OrderRepo) GetDetails(ctx context.Context, id uuid.UUID) (*domain.OrderDetails, error) {
	const op = "postgresrepo.OrderRepo.GetDetails"

	db := r.handle()

	o, err := scanOrder(db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	details := &domain.OrderDetails{
		Order:     *o,
		Tickets:   []domain.Ticket{},
		LineItems: []domain.LineItem{},
	}

	rows, err := db.Query(ctx,
		`SELECT id, order_id, show_id, seat_row, seat_number, created_at
		 FROM tickets WHERE order_id = $1
		 ORDER BY seat_row, seat_number`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.ShowID, &t.SeatRow, &t.SeatNumber, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, wrapDBErr(op, err)
		}
		details.Tickets = append(details.Tickets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err = db.Query(ctx,
		`SELECT id, order_id, ticket_id, concession_id, quantity, subtotal
		 FROM order_items WHERE order_id = $1
		 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.TicketID, &li.ConcessionID, &li.Quantity, &li.Subtotal); err != nil {
			return nil, wrapDBErr(op, err)
		}
		details.LineItems = append(details.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return details, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
