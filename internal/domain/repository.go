// Package domain provides the repository contracts of the synced tables.
package domain

import (
	"context"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/numerator"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
)

// Repositories is a connection to the site's synced tables.
// Translators read through it to resolve references and processors write
// through it; every write appends to the changelog in the same transaction.
type Repositories interface {
	Names() name.Repository
	Stores() store.Repository
	Items() item.Repository
	Invoices() invoice.Repository
	InvoiceLines() invoice.LineRepository
	Requisitions() requisition.Repository
	RequisitionLines() requisition.LineRepository

	// Numbers hands out store-local document numbers
	Numbers() numerator.Generator
}

// Optional converts a NOT_FOUND error into (nil, nil).
// Other errors pass through unchanged.
func Optional[T any](row *T, err error) (*T, error) {
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// StoreIsActive reports whether storeID belongs to siteID.
// A store that is not yet present locally is not active.
func StoreIsActive(ctx context.Context, repos Repositories, storeID, siteID string) (bool, error) {
	s, err := Optional(repos.Stores().GetByID(ctx, storeID))
	if err != nil {
		return false, err
	}
	return s.IsActiveOn(siteID), nil
}

// NameIsActive reports whether the store trading under nameID belongs to
// siteID, i.e. whether the other party of a document is served by this site.
func NameIsActive(ctx context.Context, repos Repositories, nameID, siteID string) (bool, error) {
	s, err := Optional(repos.Stores().FindByNameID(ctx, nameID))
	if err != nil {
		return false, err
	}
	return s.IsActiveOn(siteID), nil
}
