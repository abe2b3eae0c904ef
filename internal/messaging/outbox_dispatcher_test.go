package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	rows   []postgresrepo.OutboxMessage
	sent   []int64
	failed map[int64]time.Time
}

func (f *fakeOutbox) Claim(ctx context.Context, limit int, lease time.Duration) ([]postgresrepo.OutboxMessage, error) {
	rows := f.rows
	f.rows = nil
	return rows, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	if f.failed == nil {
		f.failed = map[int64]time.Time{}
	}
	f.failed[id] = nextRetry
	return nil
}

type fakePublisher struct {
	fail map[string]bool
	got  []Message
}

func (p *fakePublisher) Publish(ctx context.Context, msg Message) error {
	if p.fail[msg.ID] {
		return errors.New("channel closed")
	}
	p.got = append(p.got, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestOutboxDispatcher_DispatchOnce(t *testing.T) {
	store := &fakeOutbox{rows: []postgresrepo.OutboxMessage{
		{ID: 1, EventType: "payment.status_changed", Payload: []byte(`{"order_id":"O1"}`)},
		{ID: 2, EventType: "payment.status_changed", Payload: []byte(`{"order_id":"O2"}`), Attempts: 2},
	}}
	pub := &fakePublisher{fail: map[string]bool{"2": true}}

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewOutboxDispatcher(store, pub, DispatcherConfig{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.now = func() time.Time { return now }

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, store.sent)
	require.Len(t, pub.got, 1)
	assert.Equal(t, "payment.status_changed", pub.got[0].RoutingKey)
	assert.Equal(t, now.Add(8*time.Second), store.failed[2])
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 32*time.Second, retryDelay(5))
	assert.Equal(t, 32*time.Second, retryDelay(9))
	assert.Equal(t, time.Second, retryDelay(-1))
}
