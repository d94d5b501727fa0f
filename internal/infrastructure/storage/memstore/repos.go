package memstore

import (
	"context"
	"sort"

	"sitesync/internal/core/apperror"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/wire"
)

func (db *DB) Names() name.Repository                     { return nameRepo{db} }
func (db *DB) Items() item.Repository                     { return itemRepo{db} }
func (db *DB) Stores() store.Repository                   { return storeRepo{db} }
func (db *DB) Invoices() invoice.Repository               { return invoiceRepo{db} }
func (db *DB) InvoiceLines() invoice.LineRepository       { return invoiceLineRepo{db} }
func (db *DB) Requisitions() requisition.Repository       { return requisitionRepo{db} }
func (db *DB) RequisitionLines() requisition.LineRepository { return requisitionLineRepo{db} }

func getRow[T any](ctx context.Context, db *DB, m map[string]T, entity, id string) (*T, error) {
	var out *T
	err := db.do(ctx, func(context.Context, *txState) error {
		row, ok := m[id]
		if !ok {
			return apperror.NewNotFound(entity, id)
		}
		out = &row
		return nil
	})
	return out, err
}

// upsertRow stores row and appends an upsert entry routed by routing,
// which is evaluated under the transaction.
func upsertRow[T any](ctx context.Context, db *DB, m map[string]T, table, id string, row T, routing func() (changelog.Routing, error)) error {
	return db.do(ctx, func(ctx context.Context, st *txState) error {
		rt, err := routing()
		if err != nil {
			return err
		}
		put(st, m, id, row)
		_, err = db.recorder.Record(ctx, table, id, wire.ActionUpsert, rt)
		return err
	})
}

// deleteRow removes the row and appends a delete entry. Deleting a missing
// row changes nothing.
func deleteRow[T any](ctx context.Context, db *DB, m map[string]T, table, id string, routing func(row T) changelog.Routing) error {
	return db.do(ctx, func(ctx context.Context, st *txState) error {
		row, ok := m[id]
		if !ok {
			return nil
		}
		rt := routing(row)
		remove(st, m, id)
		_, err := db.recorder.Record(ctx, table, id, wire.ActionDelete, rt)
		return err
	})
}

func broadcast() (changelog.Routing, error) { return changelog.Routing{}, nil }

func noRouting[T any](T) changelog.Routing { return changelog.Routing{} }

type nameRepo struct{ db *DB }

func (r nameRepo) GetByID(ctx context.Context, id string) (*name.Name, error) {
	return getRow(ctx, r.db, r.db.names, "name", id)
}

func (r nameRepo) Upsert(ctx context.Context, n *name.Name) error {
	return upsertRow(ctx, r.db, r.db.names, domain.TableName, n.ID, *n, broadcast)
}

func (r nameRepo) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.db, r.db.names, domain.TableName, id, noRouting[name.Name])
}

type itemRepo struct{ db *DB }

func (r itemRepo) GetByID(ctx context.Context, id string) (*item.Item, error) {
	return getRow(ctx, r.db, r.db.items, "item", id)
}

func (r itemRepo) Upsert(ctx context.Context, i *item.Item) error {
	return upsertRow(ctx, r.db, r.db.items, domain.TableItem, i.ID, *i, broadcast)
}

func (r itemRepo) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.db, r.db.items, domain.TableItem, id, noRouting[item.Item])
}

type storeRepo struct{ db *DB }

func (r storeRepo) GetByID(ctx context.Context, id string) (*store.Store, error) {
	return getRow(ctx, r.db, r.db.stores, "store", id)
}

func (r storeRepo) FindByNameID(ctx context.Context, nameID string) (*store.Store, error) {
	var out *store.Store
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, id := range sortedKeys(r.db.stores) {
			if s := r.db.stores[id]; s.NameID == nameID {
				out = &s
				return nil
			}
		}
		return apperror.NewNotFound("store", nameID).WithDetail("name_id", nameID)
	})
	return out, err
}

func (r storeRepo) ListBySite(ctx context.Context, siteID string) ([]*store.Store, error) {
	var out []*store.Store
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, s := range r.db.stores {
			if s.SiteID == siteID {
				s := s
				out = append(out, &s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r storeRepo) Upsert(ctx context.Context, s *store.Store) error {
	return upsertRow(ctx, r.db, r.db.stores, domain.TableStore, s.ID, *s, broadcast)
}

func (r storeRepo) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.db, r.db.stores, domain.TableStore, id, noRouting[store.Store])
}

type invoiceRepo struct{ db *DB }

func invoiceRouting(inv invoice.Invoice) changelog.Routing {
	return changelog.Routing{StoreID: inv.StoreID, NameID: inv.NameID}
}

func (r invoiceRepo) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	return getRow(ctx, r.db, r.db.invoices, "invoice", id)
}

func (r invoiceRepo) FindByLinkedID(ctx context.Context, linkedID string) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, id := range sortedKeys(r.db.invoices) {
			if inv := r.db.invoices[id]; inv.LinkedInvoiceID != nil && *inv.LinkedInvoiceID == linkedID {
				out = &inv
				return nil
			}
		}
		return apperror.NewNotFound("invoice", linkedID).WithDetail("linked_invoice_id", linkedID)
	})
	return out, err
}

func (r invoiceRepo) Upsert(ctx context.Context, inv *invoice.Invoice) error {
	return upsertRow(ctx, r.db, r.db.invoices, domain.TableInvoice, inv.ID, *inv, func() (changelog.Routing, error) {
		return invoiceRouting(*inv), nil
	})
}

func (r invoiceRepo) Delete(ctx context.Context, id string) error {
	return r.db.do(ctx, func(ctx context.Context, _ *txState) error {
		for _, l := range r.db.invoiceLines {
			if l.InvoiceID == id {
				return apperror.NewConflict("invoice still has lines").WithDetail("invoice_id", id)
			}
		}
		return deleteRow(ctx, r.db, r.db.invoices, domain.TableInvoice, id, invoiceRouting)
	})
}

type invoiceLineRepo struct{ db *DB }

func (r invoiceLineRepo) parent(line invoice.Line) (changelog.Routing, error) {
	inv, ok := r.db.invoices[line.InvoiceID]
	if !ok {
		return changelog.Routing{}, apperror.NewConflict("invoice line references a missing invoice").
			WithDetail("invoice_id", line.InvoiceID)
	}
	return invoiceRouting(inv), nil
}

func (r invoiceLineRepo) GetByID(ctx context.Context, id string) (*invoice.Line, error) {
	return getRow(ctx, r.db, r.db.invoiceLines, "invoice_line", id)
}

func (r invoiceLineRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	var out []*invoice.Line
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, id := range sortedKeys(r.db.invoiceLines) {
			if l := r.db.invoiceLines[id]; l.InvoiceID == invoiceID {
				out = append(out, &l)
			}
		}
		return nil
	})
	return out, err
}

func (r invoiceLineRepo) Upsert(ctx context.Context, line *invoice.Line) error {
	return upsertRow(ctx, r.db, r.db.invoiceLines, domain.TableInvoiceLine, line.ID, *line, func() (changelog.Routing, error) {
		return r.parent(*line)
	})
}

func (r invoiceLineRepo) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.db, r.db.invoiceLines, domain.TableInvoiceLine, id, func(l invoice.Line) changelog.Routing {
		rt, _ := r.parent(l)
		return rt
	})
}

type requisitionRepo struct{ db *DB }

func requisitionRouting(req requisition.Requisition) changelog.Routing {
	return changelog.Routing{StoreID: req.StoreID, NameID: req.NameID}
}

func (r requisitionRepo) GetByID(ctx context.Context, id string) (*requisition.Requisition, error) {
	return getRow(ctx, r.db, r.db.requisitions, "requisition", id)
}

func (r requisitionRepo) FindByLinkedID(ctx context.Context, linkedID string) (*requisition.Requisition, error) {
	var out *requisition.Requisition
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, id := range sortedKeys(r.db.requisitions) {
			if req := r.db.requisitions[id]; req.LinkedRequisitionID != nil && *req.LinkedRequisitionID == linkedID {
				out = &req
				return nil
			}
		}
		return apperror.NewNotFound("requisition", linkedID).WithDetail("linked_requisition_id", linkedID)
	})
	return out, err
}

func (r requisitionRepo) Upsert(ctx context.Context, req *requisition.Requisition) error {
	return upsertRow(ctx, r.db, r.db.requisitions, domain.TableRequisition, req.ID, *req, func() (changelog.Routing, error) {
		return requisitionRouting(*req), nil
	})
}

func (r requisitionRepo) Delete(ctx context.Context, id string) error {
	return r.db.do(ctx, func(ctx context.Context, _ *txState) error {
		for _, l := range r.db.requisitionLines {
			if l.RequisitionID == id {
				return apperror.NewConflict("requisition still has lines").WithDetail("requisition_id", id)
			}
		}
		return deleteRow(ctx, r.db, r.db.requisitions, domain.TableRequisition, id, requisitionRouting)
	})
}

type requisitionLineRepo struct{ db *DB }

func (r requisitionLineRepo) parent(line requisition.Line) (changelog.Routing, error) {
	req, ok := r.db.requisitions[line.RequisitionID]
	if !ok {
		return changelog.Routing{}, apperror.NewConflict("requisition line references a missing requisition").
			WithDetail("requisition_id", line.RequisitionID)
	}
	return requisitionRouting(req), nil
}

func (r requisitionLineRepo) GetByID(ctx context.Context, id string) (*requisition.Line, error) {
	return getRow(ctx, r.db, r.db.requisitionLines, "requisition_line", id)
}

func (r requisitionLineRepo) ListByRequisition(ctx context.Context, requisitionID string) ([]*requisition.Line, error) {
	var out []*requisition.Line
	err := r.db.do(ctx, func(context.Context, *txState) error {
		for _, id := range sortedKeys(r.db.requisitionLines) {
			if l := r.db.requisitionLines[id]; l.RequisitionID == requisitionID {
				out = append(out, &l)
			}
		}
		return nil
	})
	return out, err
}

func (r requisitionLineRepo) Upsert(ctx context.Context, line *requisition.Line) error {
	return upsertRow(ctx, r.db, r.db.requisitionLines, domain.TableRequisitionLine, line.ID, *line, func() (changelog.Routing, error) {
		return r.parent(*line)
	})
}

func (r requisitionLineRepo) Delete(ctx context.Context, id string) error {
	return deleteRow(ctx, r.db, r.db.requisitionLines, domain.TableRequisitionLine, id, func(l requisition.Line) changelog.Routing {
		rt, _ := r.parent(l)
		return rt
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
