package realtime

import (
	"context"
	"sync"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/metrics"
)

const defaultBuffer = 16

// Subscription receives the status events of one order.
type Subscription struct {
	hub     *Hub
	orderID string
	ch      chan domain.OrderStatusEvent
	once    sync.Once
}

func (s *Subscription) OrderID() string { return s.orderID }

// Events is closed when the subscription is released, dropped for being too
// slow, or the hub stops.
func (s *Subscription) Events() <-chan domain.OrderStatusEvent { return s.ch }

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub delivers order status events to in-process subscribers. Its state is
// owned by the Run goroutine; Run must be started before Subscribe is used.
type Hub struct {
	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan domain.OrderStatusEvent
	done       chan struct{}

	subs    map[string]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.Metrics
}

func NewHub(buffer int, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Hub{
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan domain.OrderStatusEvent),
		done:       make(chan struct{}),
		subs:       make(map[string]map[*Subscription]struct{}),
		buffer:     buffer,
		metrics:    m,
	}
}

func (h *Hub) Subscribe(orderID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		orderID: orderID,
		ch:      make(chan domain.OrderStatusEvent, h.buffer),
	}

	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.ch)
	}

	return sub
}

// PublishOrderStatus hands ev to the hub. It returns early if ctx is done or the hub stopped.
func (h *Hub) PublishOrderStatus(ctx context.Context, ev domain.OrderStatusEvent) error {
	select {
	case h.broadcast <- ev:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the subscriber set until ctx is done, then closes every subscription.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case sub := <-h.register:
			set, ok := h.subs[sub.orderID]
			if !ok {
				set = make(map[*Subscription]struct{})
				h.subs[sub.orderID] = set
			}
			set[sub] = struct{}{}
			h.metrics.SubscriberAdded()

		case sub := <-h.unregister:
			h.remove(sub)

		case ev := <-h.broadcast:
			for sub := range h.subs[ev.OrderID] {
				select {
				case sub.ch <- ev:
				default:
					h.remove(sub)
				}
			}

		case <-ctx.Done():
			for _, set := range h.subs {
				for sub := range set {
					h.remove(sub)
				}
			}
			return nil
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	set, ok := h.subs[sub.orderID]
	if !ok {
		return
	}
	if _, exists := set[sub]; !exists {
		return
	}

	delete(set, sub)
	close(sub.ch)
	h.metrics.SubscriberRemoved()

	if len(set) == 0 {
		delete(h.subs, sub.orderID)
	}
}
