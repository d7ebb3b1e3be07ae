package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

// Orders start as placed. Later lifecycle transitions are owned elsewhere.
const StatusPlaced Status = "placed"

// LineItem is a purchased product with the unit price captured when the order
// was placed. It is never recomputed from the catalog.
type LineItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
	Items     []LineItem
}
