// Package paymentstep waits on the buyer side of a checkout for the payment
// result and reacts once it is known.
package paymentstep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/realtime"
)

type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeRefunded  Outcome = "refunded"
	OutcomeExpired   Outcome = "expired"
	OutcomeCancelled Outcome = "cancelled"
)

var ErrSubscriptionClosed = errors.New("status subscription closed")

type Subscriber interface {
	Subscribe(orderID string) *realtime.Subscription
}

type StatusReader interface {
	CurrentStatus(ctx context.Context, orderID string) (domain.OrderStatusEvent, error)
}

type Waiter struct {
	Hub    Subscriber
	Status StatusReader // optional; checked once up front and on every poll

	ApprovedDelay time.Duration // pause before OnApproved, 1.5s when zero
	PollInterval  time.Duration // zero disables polling
	Timeout       time.Duration // zero waits until ctx is done

	OnApproved func(domain.PaymentStatus)
	// OnRejected also fires for refunded and charged back payments.
	OnRejected func(domain.PaymentStatus)

	Logger *slog.Logger
}

// Wait blocks until the order's payment settles, the timeout elapses or ctx is
// cancelled. Once approved, the approved delay runs to completion even if the
// timeout elapses meanwhile.
func (w *Waiter) Wait(ctx context.Context, orderID string) (Outcome, error) {
	sub := w.Hub.Subscribe(orderID)
	defer sub.Close()

	parent := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	if status, done := w.poll(ctx, orderID); done {
		return w.finish(parent, status)
	}

	var tick <-chan time.Time
	if w.Status != nil && w.PollInterval > 0 {
		t := time.NewTicker(w.PollInterval)
		defer t.Stop()
		tick = t.C
	}

	events := sub.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if tick == nil {
					return OutcomeCancelled, ErrSubscriptionClosed
				}
				w.logger().Warn("status subscription closed, falling back to polling", "order_id", orderID)
				events = nil
				continue
			}
			if settled(ev.Status) {
				return w.finish(parent, ev.Status)
			}

		case <-tick:
			if status, done := w.poll(ctx, orderID); done {
				return w.finish(parent, status)
			}

		case <-ctx.Done():
			return stopped(parent), nil
		}
	}
}

func (w *Waiter) poll(ctx context.Context, orderID string) (domain.PaymentStatus, bool) {
	if w.Status == nil {
		return "", false
	}

	ev, err := w.Status.CurrentStatus(ctx, orderID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger().Warn("read order status failed", "order_id", orderID, "error", err)
		}
		return "", false
	}

	return ev.Status, settled(ev.Status)
}

func (w *Waiter) finish(parent context.Context, status domain.PaymentStatus) (Outcome, error) {
	if status != domain.StatusApproved {
		if w.OnRejected != nil {
			w.OnRejected(status)
		}
		if status.IsFailure() {
			return OutcomeRejected, nil
		}
		return OutcomeRefunded, nil
	}

	delay := w.ApprovedDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
	case <-parent.Done():
		return OutcomeCancelled, nil
	}

	if w.OnApproved != nil {
		w.OnApproved(status)
	}

	return OutcomeApproved, nil
}

func (w *Waiter) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// settled reports whether status ends the wait. Anything else reads as pending.
func settled(status domain.PaymentStatus) bool {
	return status.IsTerminal()
}

func stopped(parent context.Context) Outcome {
	if parent.Err() != nil {
		return OutcomeCancelled
	}
	return OutcomeExpired
}
