package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidLine       = errors.New("invalid cart line")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTransactionFailed marks storage-level aborts. Nothing was committed,
	// so the whole call is safe to retry.
	ErrTransactionFailed = errors.New("transaction failed")
)

type InvalidLineError struct {
	Index     int
	ProductID int64
	Quantity  int
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid cart line %d: product %d, quantity %d", e.Index, e.ProductID, e.Quantity)
}

func (e *InvalidLineError) Unwrap() error { return ErrInvalidLine }

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError reports the first product whose stock cannot cover
// the quantity requested across all lines of the cart.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
