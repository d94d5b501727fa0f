// Package item provides the Item catalog (products and services).
package item

import (
	"context"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/entity"
)

// Type distinguishes stocked goods from services.
type Type string

const (
	TypeStock   Type = "stock"
	TypeService Type = "service"
)

// Item represents a product that can appear on invoice and requisition lines.
type Item struct {
	entity.BaseRow

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
	Type Type   `db:"type" json:"type"`

	// DefaultPackSize is the number of units in one pack
	DefaultPackSize float64 `db:"default_pack_size" json:"defaultPackSize"`
}

// NewItem creates a stock item with pack size 1.
func NewItem(code, name string) *Item {
	return &Item{
		BaseRow:         entity.NewBaseRow(),
		Code:            code,
		Name:            name,
		Type:            TypeStock,
		DefaultPackSize: 1,
	}
}

// Validate implements entity.Validatable interface.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if i.Type != TypeStock && i.Type != TypeService {
		return apperror.NewValidation("invalid item type").
			WithDetail("field", "type").
			WithDetail("value", string(i.Type))
	}
	if i.DefaultPackSize < 0 {
		return apperror.NewValidation("pack size must not be negative").
			WithDetail("field", "defaultPackSize")
	}
	return nil
}
