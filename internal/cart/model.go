package cart

import "github.com/shopspring/decimal"

// Line is a cart entry joined with the current catalog row. UnitPrice and
// Available are informational; checkout re-reads them under lock.
type Line struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Available   int
	Quantity    int
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	UserID int64
	Lines  []Line
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
