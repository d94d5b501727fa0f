package name

import "context"

// Repository defines the interface for Name persistence.
// Writes append a changelog entry in the same transaction.
type Repository interface {
	// GetByID returns NOT_FOUND when the row does not exist.
	GetByID(ctx context.Context, id string) (*Name, error)

	// Upsert inserts or fully replaces the row.
	Upsert(ctx context.Context, n *Name) error

	// Delete removes the row. Deleting a missing row is a no-op.
	Delete(ctx context.Context, id string) error
}
