package store

import "context"

// Repository defines the interface for Store persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Store, error)

	// FindByNameID returns the store that trades under nameID,
	// or NOT_FOUND when the name is not a store.
	FindByNameID(ctx context.Context, nameID string) (*Store, error)

	// ListBySite returns stores owned by siteID ordered by code.
	ListBySite(ctx context.Context, siteID string) ([]*Store, error)

	Upsert(ctx context.Context, s *Store) error
	Delete(ctx context.Context, id string) error
}
