package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
	Phone string `json:"telefono"`
}

// Preference holds the checkout session identifiers returned by the payment gateway.
type Preference struct {
	ID               string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CheckoutURL returns the URL the buyer should be sent to.
func (p Preference) CheckoutURL() string {
	if p.SandboxInitPoint != "" {
		return p.SandboxInitPoint
	}
	return p.InitPoint
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	ShowID        int64           `json:"show_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Customer      Customer        `json:"customer"`
	Preference    *Preference     `json:"preference,omitempty"`
	PaymentID     string          `json:"mp_payment_id,omitempty"`
	PaymentStatus PaymentStatus   `json:"mp_payment_status,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Status returns the effective payment status; an absent status reads as pending.
func (o *Order) Status() PaymentStatus {
	if o.PaymentStatus == "" {
		return StatusPending
	}
	return o.PaymentStatus
}

type Ticket struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	ShowID     int64     `json:"show_id"`
	SeatRow    string    `json:"row"`
	SeatNumber int       `json:"seat"`
	CreatedAt  time.Time `json:"created_at"`
}

// Label is the printable seat label, e.g. "F7".
func (t Ticket) Label() string {
	return SeatLabel(t.SeatRow, t.SeatNumber)
}

// LineItem references exactly one of a ticket or a concession.
type LineItem struct {
	ID           int64           `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	TicketID     *uuid.UUID      `json:"ticket_id,omitempty"`
	ConcessionID *string         `json:"concession_id,omitempty"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Concession struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

type OrderDetails struct {
	Order     Order      `json:"order"`
	Tickets   []Ticket   `json:"tickets"`
	LineItems []LineItem `json:"line_items"`
}

// PaymentUpdate is the authoritative payment data written onto an order by the webhook.
type PaymentUpdate struct {
	PaymentID     string
	Status        PaymentStatus
	PaymentMethod string
}
