package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	webhookEvents       *prometheus.CounterVec
	gatewayDuration     *prometheus.HistogramVec
	preferences         *prometheus.CounterVec
	realtimeSubscribers prometheus.Gauge
	outboxPublished     *prometheus.CounterVec
}

// New registers the service collectors on reg. A nil *Metrics is valid and records nothing.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinetix_webhook_events_total",
				Help: "Payment webhook deliveries by outcome",
			},
			[]string{"outcome"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinetix_gateway_request_duration_seconds",
				Help:    "Latency of payment gateway calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		preferences: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinetix_preferences_total",
				Help: "Checkout preference requests by result",
			},
			[]string{"result"},
		),
		realtimeSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cinetix_realtime_subscribers",
				Help: "Open order status subscriptions on this instance",
			},
		),
		outboxPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinetix_outbox_published_total",
				Help: "Outbox rows handed to the broker by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.webhookEvents,
		m.gatewayDuration,
		m.preferences,
		m.realtimeSubscribers,
		m.outboxPublished,
	)

	return m
}

func (m *Metrics) WebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGateway(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

func (m *Metrics) Preference(result string) {
	if m == nil {
		return
	}
	m.preferences.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Dec()
}

func (m *Metrics) OutboxPublished(result string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(result).Inc()
}
