package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits used for all amounts.
const Scale = 2

// Parse reads a positive amount with at most Scale fraction digits.
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if !d.IsPositive() || !d.Equal(d.Truncate(Scale)) {
		return decimal.Zero, false
	}
	return d.Truncate(Scale), true
}

// Format renders d with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
