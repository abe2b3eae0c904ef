package httpgin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID        string              `json:"user_id"`
	ShowID        int64               `json:"show_id" binding:"required,gt=0"`
	PaymentMethod string              `json:"payment_method"`
	Customer      domain.Customer     `json:"customer"`
	Seats         []SeatRequest       `json:"seats" binding:"required,min=1,dive"`
	Concessions   []ConcessionRequest `json:"concessions" binding:"dive"`
}

type SeatRequest struct {
	Row  string `json:"row" binding:"required"`
	Seat int    `json:"seat" binding:"required,gt=0"`
}

type ConcessionRequest struct {
	ID       string `json:"id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderResponse struct {
	OrderID     string               `json:"order_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Status      domain.PaymentStatus `json:"status"`
	Tickets     []domain.Ticket      `json:"tickets"`
}

// CreatePreferenceRequest mirrors the payload the checkout frontend sends.
type CreatePreferenceRequest struct {
	CompraID         looseID         `json:"compraId" swaggertype:"string"`
	TotalPrice       decimal.Decimal `json:"totalPrice" swaggertype:"number"`
	CustomerData     domain.Customer `json:"customerData"`
	SelectedSeats    []SelectedSeat  `json:"selectedSeats"`
	CarritoAlimentos map[string]int  `json:"carritoAlimentos"`
}

type SelectedSeat struct {
	ID string `json:"id"`
}

type CreatePreferenceResponse struct {
	Success          bool   `json:"success"`
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
	QRCode           string `json:"qr_code"`
}

type WebhookResponse struct {
	Received bool                 `json:"received"`
	Ignored  bool                 `json:"ignored,omitempty"`
	Outcome  string               `json:"outcome"`
	OrderID  string               `json:"order_id,omitempty"`
	Status   domain.PaymentStatus `json:"status,omitempty"`
}

type StatusResponse struct {
	Success bool                 `json:"success"`
	Status  domain.PaymentStatus `json:"status"`
	OrderID string               `json:"compra_id"`
	Amount  decimal.Decimal      `json:"monto"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// looseID accepts an order id sent either as a JSON string or a number.
type looseID string

func (id *looseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = looseID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("compraId must be a string or a number")
	}
	*id = looseID(n.String())

	return nil
}
