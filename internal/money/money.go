// Package money converts between stored integer cents and decimal amounts.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount that fits a BIGINT cents column.
var MaxAmount = FromCents(math.MaxInt64)

// FromCents returns the decimal amount for a stored cent value.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Cents rounds d half away from zero to two places and returns it in cents.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// Format renders d with exactly two fractional digits, e.g. "14.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// InRange reports whether d rounds to a non-negative amount that Cents can
// represent without overflowing.
func InRange(d decimal.Decimal) bool {
	r := d.Round(2)
	return !r.IsNegative() && r.LessThanOrEqual(MaxAmount)
}

// WholeCents reports whether d has no more than two fractional digits.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
