package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/repository"
)

type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*domain.OrderDetails, error)
}

type DeliveryLog interface {
	ListByOrder(ctx context.Context, orderID string, limit int64) ([]domain.WebhookDelivery, error)
}

type Service struct {
	orders     Reader
	deliveries DeliveryLog
}

// New builds the read side for orders. deliveries may be nil when the
// delivery log is not configured.
func New(orders Reader, deliveries DeliveryLog) *Service {
	return &Service{orders: orders, deliveries: deliveries}
}

// GetOrder retrieves an order along with its tickets and line items.
//
// Parameters:
//   - ctx: request-scoped context.
//   - orderID: ID of the order to retrieve.
//
// Returns:
//   - *domain.OrderDetails: the order with tickets and line items.
//   - error: orders.ErrOrderNotFound if the order is not found.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.OrderDetails, error) {
	const op = "service.orders.GetOrder"

	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}

	d, err := s.orders.GetDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return d, nil
}

// CurrentStatus returns the payment status the order holds right now.
func (s *Service) CurrentStatus(ctx context.Context, orderID string) (domain.OrderStatusEvent, error) {
	const op = "service.orders.CurrentStatus"

	id, err := uuid.Parse(orderID)
	if err != nil {
		return domain.OrderStatusEvent{}, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.OrderStatusEvent{}, fmt.Errorf("%s: %w", op, notFound(err))
	}

	return domain.OrderStatusEvent{
		OrderID:       o.ID.String(),
		Status:        o.Status(),
		PaymentID:     o.PaymentID,
		PaymentMethod: o.PaymentMethod,
		OccurredAt:    o.UpdatedAt,
	}, nil
}

// Deliveries lists the webhook notifications recorded for an order, newest first.
func (s *Service) Deliveries(ctx context.Context, orderID string, limit int64) ([]domain.WebhookDelivery, error) {
	const op = "service.orders.Deliveries"

	if s.deliveries == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrLogDisabled)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	out, err := s.deliveries.ListByOrder(ctx, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}
