package payment

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFields          = errors.New("missing required fields: id and quantity")
	ErrInvalidQuantity        = errors.New("quantity must be greater than 0")
	ErrProductNotFound        = errors.New("product not found")
	ErrInventoryUnavailable   = errors.New("inventory service unavailable")
	ErrInsufficientStock      = errors.New("not enough stock available")
	ErrEventStreamUnavailable = errors.New("event stream unavailable")
)

// InsufficientStockError reports how many units the advisory stock check saw.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock available. Only %d units in stock.", e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
