// Package types provides common value types shared by synced rows.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a price or amount with full precision.
// Uses decimal.Decimal to avoid floating-point errors when prices travel
// between sites as text.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineTotal returns packs * packSize * price rounded to 2 places.
func LineTotal(packs float64, packSize float64, price Money) Money {
	units := decimal.NewFromFloat(packs).Mul(decimal.NewFromFloat(packSize))
	return units.Mul(price).Round(2)
}
