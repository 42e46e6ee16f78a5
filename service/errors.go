package service

import "errors"

var (
	ErrOrderNotFound            = errors.New("order not found")
	ErrProductNotFound          = errors.New("product not found")
	ErrInvalidOrderItems        = errors.New("order must contain at least one item with a positive quantity")
	ErrOrderNotCancellable      = errors.New("order cannot be cancelled")
	ErrOrderNotPayable          = errors.New("order is not payable")
	ErrPaymentAlreadyCompleted  = errors.New("payment already completed")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrInvalidPaymentStatus     = errors.New("invalid payment status")
	ErrInvalidOrderStatus       = errors.New("invalid order status")
	ErrInvalidStatusTransition  = errors.New("order status transition not allowed")
	ErrInvalidQuery             = errors.New("invalid query")
	ErrPaymentFinalized         = errors.New("payment status is final")
	ErrOrderNumberExhausted     = errors.New("could not allocate a unique order number")
)
