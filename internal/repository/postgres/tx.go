package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
)

// CheckoutTx is the set of writes an order creation performs in one transaction.
type CheckoutTx struct {
	orders      *OrderRepo
	tickets     *TicketRepo
	lineItems   *LineItemRepo
	concessions *ConcessionRepo
}

func (s *Store) CheckoutTx(db DB) *CheckoutTx {
	return &CheckoutTx{
		orders:      s.Orders().With(db),
		tickets:     s.Tickets().With(db),
		lineItems:   s.LineItems().With(db),
		concessions: s.Concessions().With(db),
	}
}

func (t *CheckoutTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	return t.orders.Insert(ctx, o)
}

func (t *CheckoutTx) InsertTickets(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	return t.tickets.InsertBatch(ctx, tickets)
}

func (t *CheckoutTx) InsertLineItems(ctx context.Context, items []domain.LineItem) error {
	return t.lineItems.InsertBatch(ctx, items)
}

func (t *CheckoutTx) Concessions(ctx context.Context, ids []string) (map[string]domain.Concession, error) {
	return t.concessions.ByIDs(ctx, ids)
}

// PaymentTx is the set of writes a webhook performs in one transaction.
type PaymentTx struct {
	orders *OrderRepo
	outbox *OutboxRepo
}

func (s *Store) PaymentTx(db DB) *PaymentTx {
	return &PaymentTx{
		orders: s.Orders().With(db),
		outbox: s.Outbox().With(db),
	}
}

func (t *PaymentTx) LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return t.orders.GetForUpdate(ctx, id)
}

func (t *PaymentTx) ApplyPayment(ctx context.Context, id uuid.UUID, upd domain.PaymentUpdate) error {
	return t.orders.ApplyPayment(ctx, id, upd)
}

func (t *PaymentTx) EnqueueEvent(ctx context.Context, eventType, aggregateID string, payload []byte) error {
	return t.outbox.Enqueue(ctx, eventType, aggregateID, payload)
}
