package invoice

import "context"

// Repository defines the interface for shipment header persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Invoice, error)

	// FindByLinkedID returns the invoice whose linked_invoice_id equals
	// linkedID, or NOT_FOUND.
	FindByLinkedID(ctx context.Context, linkedID string) (*Invoice, error)

	Upsert(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id string) error
}

// LineRepository defines the interface for shipment line persistence.
// Line changelog entries carry the routing keys of the parent invoice.
type LineRepository interface {
	GetByID(ctx context.Context, id string) (*Line, error)

	// ListByInvoice returns lines of an invoice ordered by id.
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Line, error)

	Upsert(ctx context.Context, line *Line) error
	Delete(ctx context.Context, id string) error
}
