package payments

import "errors"

var (
	ErrInvalidPayload           = errors.New("invalid webhook payload")
	ErrInvalidSignature         = errors.New("invalid webhook signature")
	ErrPaymentLookup            = errors.New("payment lookup failed")
	ErrMissingExternalReference = errors.New("payment has no external reference")
	ErrInProgress               = errors.New("notification is being processed")
	ErrOrderNotFound            = errors.New("order not found")
	ErrUnknownOrderReference    = errors.New("external reference matches no order")
	ErrMissingLookupKey         = errors.New("preference_id or payment_id is required")
)
