package domain

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	StatusPending     PaymentStatus = "pending"
	StatusInProcess   PaymentStatus = "in_process"
	StatusAuthorized  PaymentStatus = "authorized"
	StatusInMediation PaymentStatus = "in_mediation"
	StatusApproved    PaymentStatus = "approved"
	StatusRejected    PaymentStatus = "rejected"
	StatusCancelled   PaymentStatus = "cancelled"
	StatusRefunded    PaymentStatus = "refunded"
	StatusChargedBack PaymentStatus = "charged_back"
)

// rank orders statuses so that an update never moves an order backwards.
func (s PaymentStatus) rank() int {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return 1
	case StatusRefunded, StatusChargedBack:
		return 2
	default:
		return 0
	}
}

// IsTerminal reports whether the buyer-facing outcome of the payment is settled.
func (s PaymentStatus) IsTerminal() bool {
	return s.rank() > 0
}

// IsFailure reports whether the payment ended without collecting money.
func (s PaymentStatus) IsFailure() bool {
	return s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo reports whether an order currently in s may be overwritten with next.
//
// Statuses never regress in rank. An approved payment only moves on to a refund or
// chargeback; a rejected or cancelled one may still be followed by an approved retry
// made against the same preference.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == "" {
		s = StatusPending
	}
	if next.rank() < s.rank() {
		return false
	}
	if s == StatusApproved && next.rank() == 1 && next != StatusApproved {
		return false
	}
	return true
}

// ParsePaymentStatus normalizes a gateway status string.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusInProcess, StatusAuthorized, StatusInMediation,
		StatusApproved, StatusRejected, StatusCancelled, StatusRefunded, StatusChargedBack:
		return s, nil
	}
	return "", fmt.Errorf("unknown payment status %q", raw)
}

// SeatLabel formats a row/seat pair, e.g. "F7".
func SeatLabel(row string, number int) string {
	return fmt.Sprintf("%s%d", strings.ToUpper(row), number)
}
