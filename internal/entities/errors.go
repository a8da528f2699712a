package entities

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrStockNotFound       = errors.New("stock not found")
	ErrInvalidState        = errors.New("invalid order state")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidRelease      = errors.New("release exceeds reserved quantity")
	ErrDuplicateStock      = errors.New("stock already exists")
	ErrInvalidOrder        = errors.New("invalid order data")
)
