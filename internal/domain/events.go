package domain

import "time"

const EventPaymentStatusChanged = "payment.status_changed"

// OrderStatusEvent is pushed to clients watching an order whenever its payment status changes.
type OrderStatusEvent struct {
	OrderID       string        `json:"order_id"`
	Status        PaymentStatus `json:"status"`
	PaymentID     string        `json:"payment_id,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// WebhookDelivery is one received gateway notification as recorded in the delivery log.
type WebhookDelivery struct {
	RequestID      string    `json:"request_id" bson:"request_id"`
	Type           string    `json:"type" bson:"type"`
	Action         string    `json:"action,omitempty" bson:"action,omitempty"`
	DataID         string    `json:"data_id" bson:"data_id"`
	SignatureValid *bool     `json:"signature_valid,omitempty" bson:"signature_valid,omitempty"`
	Outcome        string    `json:"outcome" bson:"outcome"`
	OrderID        string    `json:"order_id,omitempty" bson:"order_id,omitempty"`
	Status         string    `json:"status,omitempty" bson:"status,omitempty"`
	Error          string    `json:"error,omitempty" bson:"error,omitempty"`
	RawBody        string    `json:"raw_body" bson:"raw_body"`
	ReceivedAt     time.Time `json:"received_at" bson:"received_at"`
}
