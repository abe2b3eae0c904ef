package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/gateway/mercadopago"
	"github.com/kirinyoku/cinetix/internal/metrics"
	"github.com/kirinyoku/cinetix/internal/repository"
	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cinetix/internal/repository/redis"
	"github.com/kirinyoku/cinetix/internal/uow"
	"github.com/shopspring/decimal"
)

// Webhook outcomes. Errors are reported by their own outcome names in the delivery log.
const (
	OutcomeProcessed   = "processed"
	OutcomeIgnoredType = "ignored_type"
	OutcomeIgnoredTest = "ignored_test"
	OutcomeDuplicate   = "duplicate"
	OutcomeStale       = "stale"
	// the gateway charged a different amount than the order total
	OutcomeAmountMismatch = "amount_mismatch"
)

// testPaymentID is the id the gateway's webhook simulator sends.
const testPaymentID = "123456"

type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type Verifier interface {
	Verify(header, requestID, dataID string) error
}

type Orders interface {
	FindByPreferenceID(ctx context.Context, preferenceID string) (*domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
}

type Ledger interface {
	Claim(ctx context.Context, key string, lockTTL time.Duration) (redisrepo.ClaimState, string, error)
	SaveResult(ctx context.Context, key string, payload string) error
	Release(ctx context.Context, key string) error
}

type Notifier interface {
	PublishOrderStatus(ctx context.Context, ev domain.OrderStatusEvent) error
}

type DeliveryLog interface {
	Record(ctx context.Context, d domain.WebhookDelivery) error
}

// Tx is the transactional view used while applying a payment notification.
type Tx interface {
	LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ApplyPayment(ctx context.Context, id uuid.UUID, upd domain.PaymentUpdate) error
	EnqueueEvent(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error) error
}

type Config struct {
	LedgerLockTTL        time.Duration
	StatusCacheTTL       time.Duration
	DefaultPaymentMethod string
}

type Deps struct {
	Gateway  Gateway
	Verifier Verifier
	Orders   Orders
	TxM      TxManager
	Ledger   Ledger
	Notifier Notifier
	Log      DeliveryLog
	Cache    *redisrepo.Cache
	Metrics  *metrics.Metrics
}

type Service struct {
	Deps
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// New builds the service. A nil Verifier disables signature checks; nil Ledger,
// Notifier, Log and Cache switch the corresponding feature off.
func New(deps Deps, logger *slog.Logger, cfg Config) *Service {
	if cfg.LedgerLockTTL <= 0 {
		cfg.LedgerLockTTL = 30 * time.Second
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 5 * time.Second
	}
	if cfg.DefaultPaymentMethod == "" {
		cfg.DefaultPaymentMethod = "mercadopago"
	}

	return &Service{Deps: deps, logger: logger, cfg: cfg, now: time.Now}
}

type WebhookInput struct {
	Body        []byte
	Signature   string
	RequestID   string
	QueryDataID string
}

type WebhookResult struct {
	Outcome string               `json:"outcome"`
	OrderID string               `json:"order_id,omitempty"`
	Status  domain.PaymentStatus `json:"status,omitempty"`
}

// HandleWebhook applies one gateway notification. The delivery is always
// recorded, whatever the result.
//
// Returns:
//   - WebhookResult: how the notification was handled.
//   - error: ErrInvalidPayload, ErrInvalidSignature, ErrPaymentLookup,
//     ErrMissingExternalReference, ErrInProgress, ErrUnknownOrderReference.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	const op = "service.payments.HandleWebhook"

	delivery := domain.WebhookDelivery{
		RequestID:  in.RequestID,
		RawBody:    string(in.Body),
		ReceivedAt: s.now().UTC(),
	}

	res, err := s.handleWebhook(ctx, in, &delivery)

	delivery.Outcome = res.Outcome
	delivery.OrderID = res.OrderID
	delivery.Status = string(res.Status)
	if err != nil {
		delivery.Outcome = errorOutcome(err)
		delivery.Error = err.Error()
	}

	s.Metrics.WebhookEvent(delivery.Outcome)
	s.record(ctx, delivery)

	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) handleWebhook(ctx context.Context, in WebhookInput, d *domain.WebhookDelivery) (WebhookResult, error) {
	var n mercadopago.Notification
	if err := json.Unmarshal(in.Body, &n); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	dataID := n.Data.ID.String()
	if dataID == "" {
		dataID = strings.TrimSpace(in.QueryDataID)
	}
	d.Type, d.Action, d.DataID = n.Type, n.Action, dataID

	if s.Verifier != nil {
		err := s.Verifier.Verify(in.Signature, in.RequestID, dataID)
		valid := err == nil
		d.SignatureValid = &valid
		if err != nil {
			return WebhookResult{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
	}

	if n.Type != "payment" {
		return WebhookResult{Outcome: OutcomeIgnoredType}, nil
	}

	if dataID == "" {
		return WebhookResult{}, fmt.Errorf("%w: missing data.id", ErrInvalidPayload)
	}

	if dataID == testPaymentID {
		return WebhookResult{Outcome: OutcomeIgnoredTest}, nil
	}

	payment, err := s.Gateway.GetPayment(ctx, dataID)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrPaymentLookup, err)
	}

	ref := strings.TrimSpace(payment.ExternalReference)
	if ref == "" {
		return WebhookResult{}, ErrMissingExternalReference
	}

	paymentID := payment.ID.String()
	if paymentID == "" {
		paymentID = dataID
	}

	status, err := domain.ParsePaymentStatus(payment.Status)
	if err != nil {
		s.logger.Warn("unknown payment status from gateway", "payment_id", paymentID, "status", payment.Status)
		status = domain.PaymentStatus(strings.ToLower(strings.TrimSpace(payment.Status)))
	}

	method := payment.PaymentMethodID
	if method == "" {
		method = s.cfg.DefaultPaymentMethod
	}

	res := WebhookResult{OrderID: ref, Status: status}

	ledgerKey := redisrepo.KeyWebhookLedger(paymentID, string(status))
	useLedger := s.Ledger != nil
	if useLedger {
		state, prev, err := s.Ledger.Claim(ctx, ledgerKey, s.cfg.LedgerLockTTL)
		if err != nil {
			// the row lock and the duplicate check below still hold without the ledger
			s.logger.Warn("webhook ledger unavailable", "key", ledgerKey, "error", err)
			useLedger = false
			state = redisrepo.Claimed
		}
		switch state {
		case redisrepo.Done:
			res.Outcome = OutcomeDuplicate
			var recorded WebhookResult
			if json.Unmarshal([]byte(prev), &recorded) == nil && recorded.OrderID != "" {
				res.OrderID = recorded.OrderID
			}
			return res, nil
		case redisrepo.InFlight:
			return res, ErrInProgress
		}
	}

	res, err = s.apply(ctx, ref, domain.PaymentUpdate{
		PaymentID:     paymentID,
		Status:        status,
		PaymentMethod: method,
	}, payment.TransactionAmount)
	if useLedger {
		s.settleLedger(ctx, ledgerKey, res, err)
	}
	if err != nil {
		return res, err
	}

	return res, nil
}

// apply moves the order to the payment's status. charged is the amount the
// gateway reports; zero means it was not reported.
func (s *Service) apply(ctx context.Context, ref string, upd domain.PaymentUpdate, charged decimal.Decimal) (WebhookResult, error) {
	res := WebhookResult{OrderID: ref, Status: upd.Status}

	orderID, err := uuid.Parse(ref)
	if err != nil {
		return res, ErrUnknownOrderReference
	}

	err = s.TxM.Do(ctx, func(ctx context.Context, tx Tx, after func(uow.AfterCommit)) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnknownOrderReference
			}
			return err
		}

		current := order.Status()
		if order.PaymentID == upd.PaymentID && current == upd.Status {
			res.Outcome = OutcomeDuplicate
			return nil
		}
		if !current.CanTransitionTo(upd.Status) {
			s.logger.Info("ignoring stale payment status",
				"order_id", orderID,
				"current", current,
				"incoming", upd.Status,
				"payment_id", upd.PaymentID,
			)
			res.Outcome = OutcomeStale
			res.Status = current
			return nil
		}
		if upd.Status == domain.StatusApproved && charged.IsPositive() && !charged.Equal(order.TotalAmount) {
			s.logger.Error("approved payment amount differs from order total",
				"order_id", orderID,
				"payment_id", upd.PaymentID,
				"charged", charged.StringFixed(2),
				"total", order.TotalAmount.StringFixed(2),
			)
			res.Outcome = OutcomeAmountMismatch
			res.Status = current
			return nil
		}

		if err := tx.ApplyPayment(ctx, orderID, upd); err != nil {
			return err
		}

		ev := domain.OrderStatusEvent{
			OrderID:       orderID.String(),
			Status:        upd.Status,
			PaymentID:     upd.PaymentID,
			PaymentMethod: upd.PaymentMethod,
			OccurredAt:    s.now().UTC(),
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, domain.EventPaymentStatusChanged, ev.OrderID, payload); err != nil {
			return err
		}

		var preferenceID string
		if order.Preference != nil {
			preferenceID = order.Preference.ID
		}
		previousPaymentID := order.PaymentID

		after(func(ctx context.Context) {
			s.afterPaymentApplied(ctx, ev, preferenceID, previousPaymentID)
		})

		res.Outcome = OutcomeProcessed
		return nil
	})
	if err != nil {
		if postgresrepo.IsRetryable(err) {
			return res, fmt.Errorf("%w: %w", ErrInProgress, err)
		}
		return res, err
	}

	return res, nil
}

func (s *Service) afterPaymentApplied(ctx context.Context, ev domain.OrderStatusEvent, preferenceID, previousPaymentID string) {
	s.logger.Info("payment status applied",
		"order_id", ev.OrderID,
		"status", ev.Status,
		"payment_id", ev.PaymentID,
	)

	if s.Notifier != nil {
		if err := s.Notifier.PublishOrderStatus(ctx, ev); err != nil {
			s.logger.Warn("publish order status failed", "order_id", ev.OrderID, "error", err)
		}
	}

	if s.Cache != nil {
		if err := s.Cache.InvalidatePaymentStatus(ctx, preferenceID, ev.PaymentID); err != nil {
			s.logger.Warn("invalidate status cache failed", "order_id", ev.OrderID, "error", err)
		}
		if previousPaymentID != "" && previousPaymentID != ev.PaymentID {
			_ = s.Cache.InvalidatePaymentStatus(ctx, "", previousPaymentID)
		}
	}
}

// settleLedger records a finished result, or frees the key so a redelivery can retry.
func (s *Service) settleLedger(ctx context.Context, key string, res WebhookResult, err error) {
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		if relErr := s.Ledger.Release(ctx, key); relErr != nil {
			s.logger.Warn("release webhook ledger failed", "key", key, "error", relErr)
		}
		return
	}

	b, _ := json.Marshal(res)
	if saveErr := s.Ledger.SaveResult(ctx, key, string(b)); saveErr != nil {
		s.logger.Warn("save webhook ledger failed", "key", key, "error", saveErr)
	}
}

func (s *Service) record(ctx context.Context, d domain.WebhookDelivery) {
	if s.Log == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	if err := s.Log.Record(ctx, d); err != nil {
		s.logger.Warn("record webhook delivery failed", "request_id", d.RequestID, "error", err)
	}
}

func errorOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrPaymentLookup):
		return "lookup_failed"
	case errors.Is(err, ErrMissingExternalReference):
		return "missing_reference"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	case errors.Is(err, ErrUnknownOrderReference):
		return "order_not_found"
	default:
		return "error"
	}
}

type StatusQuery struct {
	PreferenceID string
	PaymentID    string
}

// StatusView is what the frontend polls while the buyer is on the gateway.
type StatusView struct {
	Status  domain.PaymentStatus `json:"status"`
	OrderID string               `json:"compra_id"`
	Amount  decimal.Decimal      `json:"monto"`
}

// Status resolves an order by preference id (preferred) or payment id.
//
// Returns:
//   - StatusView: the current status; an unset status reads as pending.
//   - error: ErrMissingLookupKey, ErrOrderNotFound.
func (s *Service) Status(ctx context.Context, q StatusQuery) (StatusView, error) {
	const op = "service.payments.Status"

	q.PreferenceID = strings.TrimSpace(q.PreferenceID)
	q.PaymentID = strings.TrimSpace(q.PaymentID)

	var (
		key  string
		load func(ctx context.Context) (StatusView, error)
	)

	switch {
	case q.PreferenceID != "":
		key = redisrepo.KeyStatusByPreference(q.PreferenceID)
		load = func(ctx context.Context) (StatusView, error) {
			return s.loadStatus(s.Orders.FindByPreferenceID(ctx, q.PreferenceID))
		}
	case q.PaymentID != "":
		key = redisrepo.KeyStatusByPayment(q.PaymentID)
		load = func(ctx context.Context) (StatusView, error) {
			return s.loadStatus(s.Orders.FindByPaymentID(ctx, q.PaymentID))
		}
	default:
		return StatusView{}, fmt.Errorf("%s: %w", op, ErrMissingLookupKey)
	}

	if s.Cache == nil {
		v, err := load(ctx)
		if err != nil {
			return StatusView{}, fmt.Errorf("%s: %w", op, err)
		}
		return v, nil
	}

	var loadErr error
	v, err := redisrepo.GetOrSetJSON(ctx, s.Cache, key, s.cfg.StatusCacheTTL, func(ctx context.Context) (StatusView, error) {
		v, err := load(ctx)
		loadErr = err
		return v, err
	})
	if err != nil && loadErr == nil && !errors.Is(err, ErrOrderNotFound) {
		s.logger.Warn("status cache unavailable", "key", key, "error", err)
		v, err = load(ctx)
	}
	if err != nil {
		return StatusView{}, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Service) loadStatus(o *domain.Order, err error) (StatusView, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return StatusView{}, ErrOrderNotFound
		}
		return StatusView{}, err
	}

	return StatusView{
		Status:  o.Status(),
		OrderID: o.ID.String(),
		Amount:  o.TotalAmount,
	}, nil
}
