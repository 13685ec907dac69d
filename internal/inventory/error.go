package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrVariantNotFound   = errors.New("variant not found")
	ErrInvalidQuantity   = errors.New("quantity must not be negative")
	ErrInvalidPrice      = errors.New("original price must be at least the sale price")
	ErrInvalidOp         = errors.New("unknown stock adjustment operation")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError identifies which line item could not be
// fulfilled. errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ProductID string
	Size      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s", e.ProductID, e.Size)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
