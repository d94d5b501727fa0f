package requisition

import "context"

// Repository defines the interface for requisition header persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Requisition, error)

	// FindByLinkedID returns the requisition whose linked_requisition_id
	// equals linkedID, or NOT_FOUND.
	FindByLinkedID(ctx context.Context, linkedID string) (*Requisition, error)

	Upsert(ctx context.Context, r *Requisition) error
	Delete(ctx context.Context, id string) error
}

// LineRepository defines the interface for requisition line persistence.
type LineRepository interface {
	GetByID(ctx context.Context, id string) (*Line, error)
	ListByRequisition(ctx context.Context, requisitionID string) ([]*Line, error)
	Upsert(ctx context.Context, line *Line) error
	Delete(ctx context.Context, id string) error
}
