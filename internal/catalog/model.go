package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

var ErrInvalidProduct = errors.New("invalid product")

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductInput carries the admin-editable fields of a product.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	StockQuantity int
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if !money.WholeCents(in.Price) {
		return fmt.Errorf("%w: price must have at most two decimal places", ErrInvalidProduct)
	}
	if !money.InRange(in.Price) {
		return fmt.Errorf("%w: price is too large", ErrInvalidProduct)
	}
	if in.StockQuantity < 0 {
		return fmt.Errorf("%w: stock_quantity must not be negative", ErrInvalidProduct)
	}
	if in.StockQuantity > math.MaxInt32 {
		return fmt.Errorf("%w: stock_quantity is too large", ErrInvalidProduct)
	}
	return nil
}
