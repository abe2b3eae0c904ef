package orders

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrLogDisabled   = errors.New("delivery log disabled")
)
