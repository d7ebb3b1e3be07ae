package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
)

// CartLine is a client-submitted product reference and quantity. It has no
// price field on purpose: prices always come from the catalog.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// ProductStore is the catalog as seen from inside the order transaction.
// Implementations report a missing row with catalog.ErrNotFound and a failed
// conditional decrement with catalog.ErrInsufficientStock.
type ProductStore interface {
	GetForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	DecrementStock(ctx context.Context, id int64, amount int) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, userID int64, total decimal.Decimal) (int64, error)
	InsertLineItem(ctx context.Context, orderID, productID int64, quantity int, unitPrice decimal.Decimal) error
}

// Stores are bound to a single transaction.
type Stores struct {
	Products ProductStore
	Orders   OrderStore
}

// UnitOfWork runs fn inside one transaction. A nil return from fn commits;
// any error rolls everything back and is returned unchanged.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Notifier is told about orders after they have been committed.
type Notifier interface {
	OrderPlaced(ctx context.Context, o PlacedOrder) error
}

type ResolvedLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type PlacedOrder struct {
	OrderID  int64
	UserID   int64
	Total    decimal.Decimal
	Lines    []ResolvedLine
	PlacedAt time.Time
}
