package service

import (
	"github.com/kirinyoku/cinetix/internal/service/checkout"
	"github.com/kirinyoku/cinetix/internal/service/orders"
	"github.com/kirinyoku/cinetix/internal/service/payments"
)

type Services struct {
	Checkout *checkout.Service
	Payments *payments.Service
	Orders   *orders.Service
}
