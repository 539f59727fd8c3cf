package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPriceExceeded     = errors.New("price exceeds limit")
	ErrNoPendingAction   = errors.New("no pending action")
	ErrOrderNotFound     = errors.New("order not found")

	// ErrGateway wraps any failure reported by (or on the way to) the
	// payment gateway. The reason text travels back to the user verbatim.
	ErrGateway = errors.New("gateway failure")
)
