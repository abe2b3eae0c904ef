package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"", StatusApproved, true},
		{StatusPending, StatusPending, true},
		{StatusPending, StatusInProcess, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusInProcess, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusApproved, true},
		{StatusApproved, StatusRefunded, true},
		{StatusRejected, StatusApproved, true},
		{StatusRejected, StatusPending, false},
		{StatusRefunded, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParsePaymentStatus(t *testing.T) {
	s, err := ParsePaymentStatus(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)

	_, err = ParsePaymentStatus("teleported")
	assert.Error(t, err)
}

func TestOrder_StatusDefaultsToPending(t *testing.T) {
	var o Order
	assert.Equal(t, StatusPending, o.Status())

	o.PaymentStatus = StatusRejected
	assert.Equal(t, StatusRejected, o.Status())
}

func TestPreference_CheckoutURL(t *testing.T) {
	p := Preference{InitPoint: "https://mp/init"}
	assert.Equal(t, "https://mp/init", p.CheckoutURL())

	p.SandboxInitPoint = "https://sandbox/init"
	assert.Equal(t, "https://sandbox/init", p.CheckoutURL())
}
