// Package name provides the Name catalog.
// A name is the other party of a document: a customer, a supplier or
// another store (stores point at their own name via store.name_id).
package name

import (
	"context"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/entity"
)

// Name represents a trading partner.
type Name struct {
	entity.BaseRow

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	IsCustomer bool `db:"is_customer" json:"isCustomer"`
	IsSupplier bool `db:"is_supplier" json:"isSupplier"`
}

// NewName creates a new Name with a generated id.
func NewName(code, name string) *Name {
	return &Name{
		BaseRow: entity.NewBaseRow(),
		Code:    code,
		Name:    name,
	}
}

// Validate implements entity.Validatable interface.
func (n *Name) Validate(ctx context.Context) error {
	if err := n.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if n.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
