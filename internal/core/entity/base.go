// Package entity holds the shared contracts of synced rows.
package entity

import (
	"context"
	"strings"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Row is a record that travels between sites. Every synced table is keyed by
// a globally unique string id so sites can create rows offline.
type Row interface {
	Validatable
	GetID() string
}

// BaseRow contains the primary key shared by all synced rows.
type BaseRow struct {
	// ID is the primary key (UUIDv7 for rows created by this platform,
	// arbitrary strings for rows created by legacy sites)
	ID string `db:"id" json:"id"`
}

// NewBaseRow creates a BaseRow with a generated id.
func NewBaseRow() BaseRow {
	return BaseRow{ID: id.NewString()}
}

// GetID returns the row id.
func (b BaseRow) GetID() string {
	return b.ID
}

// Validate checks that the id is set.
func (b BaseRow) Validate(ctx context.Context) error {
	if strings.TrimSpace(b.ID) == "" {
		return apperror.NewValidation("id is required").
			WithDetail("field", "id")
	}
	return nil
}

// RequireRef checks a mandatory foreign key field.
func RequireRef(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.NewValidation(field + " is required").
			WithDetail("field", field)
	}
	return nil
}
