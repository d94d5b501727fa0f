package item

import "context"

// Repository defines the interface for Item persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Item, error)
	Upsert(ctx context.Context, i *Item) error
	Delete(ctx context.Context, id string) error
}
