package paymentstep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *realtime.Hub {
	t.Helper()

	h := realtime.NewHub(64, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(cancel)

	return h
}

type statusFunc func(ctx context.Context, orderID string) (domain.OrderStatusEvent, error)

func (f statusFunc) CurrentStatus(ctx context.Context, orderID string) (domain.OrderStatusEvent, error) {
	return f(ctx, orderID)
}

func fixed(status domain.PaymentStatus) statusFunc {
	return func(ctx context.Context, orderID string) (domain.OrderStatusEvent, error) {
		return domain.OrderStatusEvent{OrderID: orderID, Status: status}, nil
	}
}

// publishWhenSubscribed keeps publishing until the waiter has picked the event up.
func publishWhenSubscribed(ctx context.Context, h *realtime.Hub, ev domain.OrderStatusEvent) {
	go func() {
		for ctx.Err() == nil {
			_ = h.PublishOrderStatus(ctx, ev)
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestWait_ApprovedEvent(t *testing.T) {
	h := startHub(t)

	var approved atomic.Value
	w := &Waiter{
		Hub:           h,
		Status:        fixed(domain.StatusPending),
		ApprovedDelay: 10 * time.Millisecond,
		Timeout:       2 * time.Second,
		OnApproved:    func(s domain.PaymentStatus) { approved.Store(s) },
		OnRejected:    func(domain.PaymentStatus) { t.Error("unexpected rejection") },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publishWhenSubscribed(ctx, h, domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusApproved})

	start := time.Now()
	out, err := w.Wait(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
	assert.Equal(t, domain.StatusApproved, approved.Load())
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWait_AlreadyRejected(t *testing.T) {
	h := startHub(t)

	var got domain.PaymentStatus
	w := &Waiter{
		Hub:        h,
		Status:     fixed(domain.StatusCancelled),
		OnRejected: func(s domain.PaymentStatus) { got = s },
	}

	out, err := w.Wait(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)
	assert.Equal(t, domain.StatusCancelled, got)
}

func TestWait_IgnoresOtherOrdersAndPendingEvents(t *testing.T) {
	h := startHub(t)

	w := &Waiter{Hub: h, Timeout: 150 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publishWhenSubscribed(ctx, h, domain.OrderStatusEvent{OrderID: "B", Status: domain.StatusApproved})
	publishWhenSubscribed(ctx, h, domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusInProcess})

	out, err := w.Wait(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, out)
}

func TestWait_Cancelled(t *testing.T) {
	h := startHub(t)
	w := &Waiter{Hub: h, Status: fixed(domain.StatusPending)}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := w.Wait(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out)
}

func TestWait_PollFallback(t *testing.T) {
	h := startHub(t)

	var calls atomic.Int32
	w := &Waiter{
		Hub: h,
		Status: statusFunc(func(ctx context.Context, orderID string) (domain.OrderStatusEvent, error) {
			switch calls.Add(1) {
			case 1:
				return domain.OrderStatusEvent{}, errors.New("db down")
			case 2:
				return domain.OrderStatusEvent{Status: domain.StatusPending}, nil
			default:
				return domain.OrderStatusEvent{Status: domain.StatusRejected}, nil
			}
		}),
		PollInterval: 10 * time.Millisecond,
		Timeout:      2 * time.Second,
	}

	out, err := w.Wait(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWait_HubStoppedWithoutPolling(t *testing.T) {
	h := realtime.NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	w := &Waiter{Hub: h}
	out, err := w.Wait(context.Background(), "A")
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
	assert.Equal(t, OutcomeCancelled, out)
}

func TestWait_ApprovedDelayOutlivesTimeout(t *testing.T) {
	h := startHub(t)

	var approved atomic.Bool
	w := &Waiter{
		Hub:           h,
		Status:        fixed(domain.StatusApproved),
		ApprovedDelay: 100 * time.Millisecond,
		Timeout:       20 * time.Millisecond,
		OnApproved:    func(domain.PaymentStatus) { approved.Store(true) },
	}

	out, err := w.Wait(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
	assert.True(t, approved.Load())
}

func TestWait_CancelledDuringApprovedDelay(t *testing.T) {
	h := startHub(t)

	w := &Waiter{
		Hub:           h,
		Status:        fixed(domain.StatusApproved),
		ApprovedDelay: time.Second,
		OnApproved:    func(domain.PaymentStatus) { t.Error("approved callback after cancel") },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := w.Wait(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out)
}

func TestWait_RefundedSettles(t *testing.T) {
	for _, status := range []domain.PaymentStatus{domain.StatusRefunded, domain.StatusChargedBack} {
		t.Run(string(status), func(t *testing.T) {
			h := startHub(t)

			var got domain.PaymentStatus
			w := &Waiter{
				Hub:        h,
				Status:     fixed(status),
				Timeout:    time.Second,
				OnRejected: func(s domain.PaymentStatus) { got = s },
			}

			out, err := w.Wait(context.Background(), "A")
			require.NoError(t, err)
			assert.Equal(t, OutcomeRefunded, out)
			assert.Equal(t, status, got)
		})
	}
}
