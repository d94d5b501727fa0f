// Package store provides the Store catalog.
// Every store belongs to exactly one site; that site is the only place where
// the store's documents are edited.
package store

import (
	"context"

	"sitesync/internal/core/entity"
)

// Store represents a stock-holding location owned by a site.
type Store struct {
	entity.BaseRow

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// NameID is the name row other stores use to trade with this store
	NameID string `db:"name_id" json:"nameId"`

	// SiteID is the site that owns this store
	SiteID string `db:"site_id" json:"siteId"`
}

// NewStore creates a new Store with a generated id.
func NewStore(code, name, nameID, siteID string) *Store {
	return &Store{
		BaseRow: entity.NewBaseRow(),
		Code:    code,
		Name:    name,
		NameID:  nameID,
		SiteID:  siteID,
	}
}

// Validate implements entity.Validatable interface.
func (s *Store) Validate(ctx context.Context) error {
	if err := s.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if err := entity.RequireRef("nameId", s.NameID); err != nil {
		return err
	}
	return entity.RequireRef("siteId", s.SiteID)
}

// IsActiveOn reports whether the store is owned by siteID.
func (s *Store) IsActiveOn(siteID string) bool {
	return s != nil && s.SiteID == siteID
}
