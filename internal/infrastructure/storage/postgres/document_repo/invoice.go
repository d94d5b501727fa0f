package document_repo

import (
	"context"

	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/infrastructure/storage/postgres"
	"sitesync/internal/sync/changelog"
)

// SQL table names.
const (
	InvoiceTable     = "doc_invoice"
	InvoiceLineTable = "doc_invoice_line"
)

func invoiceRouting(inv *invoice.Invoice) changelog.Routing {
	return changelog.Routing{StoreID: inv.StoreID, NameID: inv.NameID}
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*postgres.RowRepo[invoice.Invoice]
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a shipment header repository.
func NewInvoiceRepo(txm *postgres.TxManager, rec *changelog.Recorder) *InvoiceRepo {
	return &InvoiceRepo{postgres.NewRowRepo[invoice.Invoice](txm, rec, InvoiceTable, domain.TableInvoice)}
}

func (r *InvoiceRepo) FindByLinkedID(ctx context.Context, linkedID string) (*invoice.Invoice, error) {
	return r.FindOne(ctx, linkedQuery(r.RowRepo, "linked_invoice_id", linkedID))
}

func (r *InvoiceRepo) Upsert(ctx context.Context, inv *invoice.Invoice) error {
	return r.Save(ctx, inv.ID, inv, invoiceRouting(inv))
}

func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, func(_ context.Context, inv *invoice.Invoice) (changelog.Routing, error) {
		return invoiceRouting(inv), nil
	})
}

// InvoiceLineRepo implements invoice.LineRepository.
type InvoiceLineRepo struct {
	*postgres.RowRepo[invoice.Line]
	invoices *InvoiceRepo
}

var _ invoice.LineRepository = (*InvoiceLineRepo)(nil)

// NewInvoiceLineRepo creates a shipment line repository. Line routing is
// read from invoices.
func NewInvoiceLineRepo(txm *postgres.TxManager, rec *changelog.Recorder, invoices *InvoiceRepo) *InvoiceLineRepo {
	return &InvoiceLineRepo{
		RowRepo:  postgres.NewRowRepo[invoice.Line](txm, rec, InvoiceLineTable, domain.TableInvoiceLine),
		invoices: invoices,
	}
}

func (r *InvoiceLineRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	return r.FindAll(ctx, linesQuery(r.RowRepo, "invoice_id", invoiceID))
}

func (r *InvoiceLineRepo) Upsert(ctx context.Context, line *invoice.Line) error {
	return r.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		rt, err := parentRouting(ctx, r.invoices.RowRepo, line.InvoiceID, invoiceRouting)
		if err != nil {
			return err
		}
		return r.Save(ctx, line.ID, line, rt)
	})
}

func (r *InvoiceLineRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, func(ctx context.Context, line *invoice.Line) (changelog.Routing, error) {
		return parentRouting(ctx, r.invoices.RowRepo, line.InvoiceID, invoiceRouting)
	})
}
