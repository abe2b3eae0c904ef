package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/gateway/mercadopago"
	"github.com/kirinyoku/cinetix/internal/metrics"
	"github.com/kirinyoku/cinetix/internal/repository"
	redisrepo "github.com/kirinyoku/cinetix/internal/repository/redis"
	"github.com/kirinyoku/cinetix/internal/uow"
	"github.com/shopspring/decimal"
)

type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SavePreference(ctx context.Context, id uuid.UUID, pref domain.Preference) error
}

type Gateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

type Limiter interface {
	Allow(ctx context.Context, clientID string) (redisrepo.Decision, error)
}

// Tx is the transactional view used while creating an order.
type Tx interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertTickets(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error)
	InsertLineItems(ctx context.Context, items []domain.LineItem) error
	Concessions(ctx context.Context, ids []string) (map[string]domain.Concession, error)
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error) error
}

type Config struct {
	TicketPrice          decimal.Decimal
	Brand                string
	Currency             string
	PublicBaseURL        string
	NotificationURL      string
	StatementDescriptor  string
	DefaultPaymentMethod string
}

type Service struct {
	orders  Orders
	txm     TxManager
	gateway Gateway
	limiter Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

func New(
	orders Orders,
	txm TxManager,
	gateway Gateway,
	limiter Limiter,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.TicketPrice.IsZero() {
		cfg.TicketPrice = decimal.RequireFromString("15.00")
	}
	if cfg.Brand == "" {
		cfg.Brand = "Cinetix"
	}
	if cfg.Currency == "" {
		cfg.Currency = "PEN"
	}
	if cfg.DefaultPaymentMethod == "" {
		cfg.DefaultPaymentMethod = "mercadopago"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.NotificationURL == "" && cfg.PublicBaseURL != "" {
		cfg.NotificationURL = cfg.PublicBaseURL + "/api/payments/webhook"
	}

	return &Service{
		orders:  orders,
		txm:     txm,
		gateway: gateway,
		limiter: limiter,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

type SeatInput struct {
	Row  string
	Seat int
}

type ConcessionLine struct {
	ID       string
	Quantity int
}

type CreateOrderInput struct {
	UserID        string
	ShowID        int64
	PaymentMethod string
	Customer      domain.Customer
	Seats         []SeatInput
	Concessions   []ConcessionLine
}

// CreateOrder stores a pending order with its tickets and line items.
//
// Returns:
//   - *domain.OrderDetails: the stored order.
//   - error: checkout.ErrInvalidInput (as *ValidationError) for a rejected request.
//   - error: checkout.ErrSeatTaken if any seat is already sold for the show.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.OrderDetails, error) {
	const op = "service.checkout.CreateOrder"

	in.Seats = normalizeSeats(in.Seats)
	if err := validateOrder(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = s.cfg.DefaultPaymentMethod
	}

	var details *domain.OrderDetails

	err := s.txm.Do(ctx, func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error {
		catalog, err := tx.Concessions(ctx, concessionIDs(in.Concessions))
		if err != nil {
			return err
		}

		total := s.cfg.TicketPrice.Mul(decimal.NewFromInt(int64(len(in.Seats))))
		for _, line := range in.Concessions {
			c, ok := catalog[line.ID]
			if !ok {
				return &ValidationError{Field: "concessions", Reason: fmt.Sprintf("unknown concession %q", line.ID)}
			}
			total = total.Add(c.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order := &domain.Order{
			UserID:        in.UserID,
			ShowID:        in.ShowID,
			TotalAmount:   total,
			PaymentMethod: method,
			Customer:      normalizeCustomer(in.Customer),
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		tickets := make([]domain.Ticket, 0, len(in.Seats))
		for _, seat := range in.Seats {
			tickets = append(tickets, domain.Ticket{
				OrderID:    order.ID,
				ShowID:     in.ShowID,
				SeatRow:    seat.Row,
				SeatNumber: seat.Seat,
			})
		}
		tickets, err = tx.InsertTickets(ctx, tickets)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSeatTaken
			}
			return err
		}

		items := make([]domain.LineItem, 0, len(tickets)+len(in.Concessions))
		for i := range tickets {
			ticketID := tickets[i].ID
			items = append(items, domain.LineItem{
				OrderID:  order.ID,
				TicketID: &ticketID,
				Quantity: 1,
				Subtotal: s.cfg.TicketPrice,
			})
		}
		for _, line := range in.Concessions {
			id := line.ID
			items = append(items, domain.LineItem{
				OrderID:      order.ID,
				ConcessionID: &id,
				Quantity:     line.Quantity,
				Subtotal:     catalog[line.ID].Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			})
		}
		if err := tx.InsertLineItems(ctx, items); err != nil {
			return err
		}

		details = &domain.OrderDetails{Order: *order, Tickets: tickets, LineItems: items}

		after(func(ctx context.Context) {
			s.logger.Info("order created",
				"order_id", order.ID,
				"show_id", order.ShowID,
				"seats", len(tickets),
				"total", order.TotalAmount.StringFixed(2),
			)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return details, nil
}

type PreferenceInput struct {
	OrderID     string
	TotalPrice  decimal.Decimal
	Customer    domain.Customer
	SeatLabels  []string
	Concessions map[string]int
	ClientID    string
}

// CreatePreference opens a checkout session on the payment gateway for an
// existing order. An order that already has a session gets it back unchanged.
//
// Returns:
//   - domain.Preference: the session identifiers.
//   - error: checkout.ErrInvalidInput, *RateLimitedError, checkout.ErrOrderNotFound,
//     *GatewayError, checkout.ErrPersistPreference.
func (s *Service) CreatePreference(ctx context.Context, in PreferenceInput) (domain.Preference, error) {
	const op = "service.checkout.CreatePreference"

	if err := validatePreference(in); err != nil {
		s.metrics.Preference("invalid")
		return domain.Preference{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil && in.ClientID != "" {
		d, err := s.limiter.Allow(ctx, in.ClientID)
		if err != nil {
			return domain.Preference{}, fmt.Errorf("%s: %w", op, err)
		}
		if !d.Allowed {
			s.metrics.Preference("rate_limited")
			return domain.Preference{}, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	orderID, err := uuid.Parse(strings.TrimSpace(in.OrderID))
	if err != nil {
		return domain.Preference{}, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Preference{}, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return domain.Preference{}, fmt.Errorf("%s: %w", op, err)
	}

	if !in.TotalPrice.Equal(order.TotalAmount) {
		s.metrics.Preference("invalid")
		return domain.Preference{}, fmt.Errorf("%s: %w", op, &ValidationError{
			Field:  "totalPrice",
			Reason: fmt.Sprintf("does not match order total %s", order.TotalAmount.StringFixed(2)),
		})
	}

	if order.Preference != nil {
		s.metrics.Preference("reused")
		return *order.Preference, nil
	}

	req, err := s.buildPreference(order, in)
	if err != nil {
		return domain.Preference{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.gateway.CreatePreference(ctx, req)
	if err != nil {
		s.metrics.Preference("gateway_error")

		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			return domain.Preference{}, fmt.Errorf("%s: %w", op, &GatewayError{Message: apiErr.Error(), Err: err})
		}
		return domain.Preference{}, fmt.Errorf("%s: %w", op, &GatewayError{Message: "payment gateway unavailable", Err: err})
	}

	pref := domain.Preference{
		ID:               created.ID,
		InitPoint:        created.InitPoint,
		SandboxInitPoint: created.SandboxInitPoint,
	}

	if err := s.orders.SavePreference(ctx, order.ID, pref); err != nil {
		s.metrics.Preference("persist_failed")
		s.logger.Error("gateway preference created but not stored",
			"order_id", order.ID,
			"preference_id", pref.ID,
			"error", err,
		)
		return domain.Preference{}, fmt.Errorf("%s: %w: %w", op, ErrPersistPreference, err)
	}

	s.metrics.Preference("created")

	return pref, nil
}

func (s *Service) buildPreference(order *domain.Order, in PreferenceInput) (mercadopago.PreferenceRequest, error) {
	orderID := order.ID
	seats := strings.Join(in.SeatLabels, ", ")

	title := "Boletos " + s.cfg.Brand
	if seats != "" {
		title += " - Asientos: " + seats
	}

	concessions := in.Concessions
	if concessions == nil {
		concessions = map[string]int{}
	}
	alimentos, err := json.Marshal(concessions)
	if err != nil {
		return mercadopago.PreferenceRequest{}, err
	}

	return mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  order.TotalAmount.InexactFloat64(),
			CurrencyID: s.cfg.Currency,
		}},
		Payer: mercadopago.Payer{
			Name:  in.Customer.Name,
			Email: in.Customer.Email,
			Phone: mercadopago.Phone{AreaCode: "51", Number: in.Customer.Phone},
		},
		BackURLs: mercadopago.BackURLs{
			Success: s.cfg.PublicBaseURL + "/pago-exitoso",
			Failure: s.cfg.PublicBaseURL + "/pago-fallido",
			Pending: s.cfg.PublicBaseURL + "/pago-pendiente",
		},
		NotificationURL:     s.cfg.NotificationURL,
		ExternalReference:   orderID.String(),
		StatementDescriptor: s.cfg.StatementDescriptor,
		Metadata: map[string]string{
			"compra_id": orderID.String(),
			"asientos":  strings.Join(in.SeatLabels, ","),
			"alimentos": string(alimentos),
		},
	}, nil
}

func validateOrder(in CreateOrderInput) error {
	if in.ShowID <= 0 {
		return &ValidationError{Field: "show_id", Reason: "must be positive"}
	}
	if err := validateCustomer(in.Customer); err != nil {
		return err
	}
	if len(in.Seats) == 0 {
		return &ValidationError{Field: "seats", Reason: "at least one seat is required"}
	}

	seen := make(map[SeatInput]struct{}, len(in.Seats))
	for _, seat := range in.Seats {
		if seat.Row == "" || seat.Seat <= 0 {
			return &ValidationError{Field: "seats", Reason: "row and positive seat number are required"}
		}
		if _, dup := seen[seat]; dup {
			return &ValidationError{Field: "seats", Reason: "duplicated seat " + domain.SeatLabel(seat.Row, seat.Seat)}
		}
		seen[seat] = struct{}{}
	}

	for _, line := range in.Concessions {
		if strings.TrimSpace(line.ID) == "" || line.Quantity <= 0 {
			return &ValidationError{Field: "concessions", Reason: "id and positive quantity are required"}
		}
	}

	return nil
}

// normalizeSeats returns the seats with rows trimmed and uppercased, the form
// tickets are stored in.
func normalizeSeats(seats []SeatInput) []SeatInput {
	out := make([]SeatInput, len(seats))
	for i, seat := range seats {
		out[i] = SeatInput{Row: strings.ToUpper(strings.TrimSpace(seat.Row)), Seat: seat.Seat}
	}
	return out
}

func validatePreference(in PreferenceInput) error {
	if strings.TrimSpace(in.OrderID) == "" {
		return &ValidationError{Field: "compraId", Reason: "is required"}
	}
	if !in.TotalPrice.IsPositive() {
		return &ValidationError{Field: "totalPrice", Reason: "must be positive"}
	}

	return validateCustomer(in.Customer)
}

func validateCustomer(c domain.Customer) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return &ValidationError{Field: "customer.nombre", Reason: "is required"}
	case strings.TrimSpace(c.Email) == "":
		return &ValidationError{Field: "customer.email", Reason: "is required"}
	case strings.TrimSpace(c.Phone) == "":
		return &ValidationError{Field: "customer.telefono", Reason: "is required"}
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return &ValidationError{Field: "customer.email", Reason: "is not a valid address"}
	}

	return nil
}

func normalizeCustomer(c domain.Customer) domain.Customer {
	return domain.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}

func concessionIDs(lines []ConcessionLine) []string {
	set := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		set[l.ID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
