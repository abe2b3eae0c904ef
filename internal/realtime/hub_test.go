package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, buffer int, m *metrics.Metrics) *Hub {
	t.Helper()

	h := NewHub(buffer, m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return h
}

func recv(t *testing.T, sub *Subscription) (domain.OrderStatusEvent, bool) {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.OrderStatusEvent{}, false
	}
}

func TestHub_DeliversOnlyToMatchingOrder(t *testing.T) {
	h := startHub(t, 4, nil)
	ctx := context.Background()

	a := h.Subscribe("A")
	b := h.Subscribe("B")
	defer a.Close()
	defer b.Close()

	require.NoError(t, h.PublishOrderStatus(ctx, domain.OrderStatusEvent{OrderID: "B", Status: domain.StatusApproved}))
	require.NoError(t, h.PublishOrderStatus(ctx, domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusRejected}))

	ev, ok := recv(t, a)
	require.True(t, ok)
	assert.Equal(t, "A", ev.OrderID)
	assert.Equal(t, domain.StatusRejected, ev.Status)

	ev, ok = recv(t, b)
	require.True(t, ok)
	assert.Equal(t, "B", ev.OrderID)

	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := startHub(t, 4, m)

	sub := h.Subscribe("A")
	sub.Close()
	sub.Close()

	_, ok := recv(t, sub)
	assert.False(t, ok)

	// round-trip through the hub so the gauge reflects the removal
	require.NoError(t, h.PublishOrderStatus(context.Background(), domain.OrderStatusEvent{OrderID: "A"}))
	const want = `
# HELP cinetix_realtime_subscribers Open order status subscriptions on this instance
# TYPE cinetix_realtime_subscribers gauge
cinetix_realtime_subscribers 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "cinetix_realtime_subscribers"))
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := startHub(t, 1, nil)
	ctx := context.Background()

	slow := h.Subscribe("A")
	defer slow.Close()

	require.NoError(t, h.PublishOrderStatus(ctx, domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusInProcess}))
	require.NoError(t, h.PublishOrderStatus(ctx, domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusApproved}))

	ev, ok := recv(t, slow)
	require.True(t, ok)
	assert.Equal(t, domain.StatusInProcess, ev.Status)

	_, ok = recv(t, slow)
	assert.False(t, ok)
}

func TestHub_StopClosesSubscriptions(t *testing.T) {
	h := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	sub := h.Subscribe("A")
	cancel()
	<-done

	_, ok := recv(t, sub)
	assert.False(t, ok)

	late := h.Subscribe("B")
	_, ok = recv(t, late)
	assert.False(t, ok)
	late.Close()

	assert.NoError(t, h.PublishOrderStatus(context.Background(), domain.OrderStatusEvent{OrderID: "A"}))
}

type fakeSource struct {
	events []domain.OrderStatusEvent
}

func (f fakeSource) Subscribe(ctx context.Context, handler func(ctx context.Context, ev domain.OrderStatusEvent)) error {
	for _, ev := range f.events {
		handler(ctx, ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRelay_ForwardsIntoHub(t *testing.T) {
	h := startHub(t, 4, nil)
	sub := h.Subscribe("A")
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRelay(fakeSource{events: []domain.OrderStatusEvent{{OrderID: "A", Status: domain.StatusApproved}}}, h, discardLogger())
	go func() { _ = r.Run(ctx) }()

	ev, ok := recv(t, sub)
	require.True(t, ok)
	assert.Equal(t, domain.StatusApproved, ev.Status)
}

type fakeSnapshot struct {
	status domain.PaymentStatus
	err    error
}

func (f fakeSnapshot) CurrentStatus(ctx context.Context, orderID string) (domain.OrderStatusEvent, error) {
	if f.err != nil {
		return domain.OrderStatusEvent{}, f.err
	}
	return domain.OrderStatusEvent{OrderID: orderID, Status: f.status}, nil
}

func TestWSHandler_SnapshotThenEvents(t *testing.T) {
	h := startHub(t, 4, nil)
	ws := NewWSHandler(h, fakeSnapshot{status: domain.StatusPending}, nil, discardLogger())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/A", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev domain.OrderStatusEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "A", ev.OrderID)
	assert.Equal(t, domain.StatusPending, ev.Status)

	// the snapshot is written after subscribing, so this publish cannot be missed
	require.NoError(t, h.PublishOrderStatus(context.Background(), domain.OrderStatusEvent{OrderID: "A", Status: domain.StatusApproved}))

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StatusApproved, ev.Status)
}
