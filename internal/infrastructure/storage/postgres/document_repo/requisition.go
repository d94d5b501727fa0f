package document_repo

import (
	"context"

	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/infrastructure/storage/postgres"
	"sitesync/internal/sync/changelog"
)

// SQL table names.
const (
	RequisitionTable     = "doc_requisition"
	RequisitionLineTable = "doc_requisition_line"
)

func requisitionRouting(req *requisition.Requisition) changelog.Routing {
	return changelog.Routing{StoreID: req.StoreID, NameID: req.NameID}
}

// RequisitionRepo implements requisition.Repository.
type RequisitionRepo struct {
	*postgres.RowRepo[requisition.Requisition]
}

var _ requisition.Repository = (*RequisitionRepo)(nil)

// NewRequisitionRepo creates a requisition header repository.
func NewRequisitionRepo(txm *postgres.TxManager, rec *changelog.Recorder) *RequisitionRepo {
	return &RequisitionRepo{postgres.NewRowRepo[requisition.Requisition](txm, rec, RequisitionTable, domain.TableRequisition)}
}

func (r *RequisitionRepo) FindByLinkedID(ctx context.Context, linkedID string) (*requisition.Requisition, error) {
	return r.FindOne(ctx, linkedQuery(r.RowRepo, "linked_requisition_id", linkedID))
}

func (r *RequisitionRepo) Upsert(ctx context.Context, req *requisition.Requisition) error {
	return r.Save(ctx, req.ID, req, requisitionRouting(req))
}

func (r *RequisitionRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, func(_ context.Context, req *requisition.Requisition) (changelog.Routing, error) {
		return requisitionRouting(req), nil
	})
}

// RequisitionLineRepo implements requisition.LineRepository.
type RequisitionLineRepo struct {
	*postgres.RowRepo[requisition.Line]
	requisitions *RequisitionRepo
}

var _ requisition.LineRepository = (*RequisitionLineRepo)(nil)

// NewRequisitionLineRepo creates a requisition line repository.
func NewRequisitionLineRepo(txm *postgres.TxManager, rec *changelog.Recorder, requisitions *RequisitionRepo) *RequisitionLineRepo {
	return &RequisitionLineRepo{
		RowRepo:      postgres.NewRowRepo[requisition.Line](txm, rec, RequisitionLineTable, domain.TableRequisitionLine),
		requisitions: requisitions,
	}
}

func (r *RequisitionLineRepo) ListByRequisition(ctx context.Context, requisitionID string) ([]*requisition.Line, error) {
	return r.FindAll(ctx, linesQuery(r.RowRepo, "requisition_id", requisitionID))
}

func (r *RequisitionLineRepo) Upsert(ctx context.Context, line *requisition.Line) error {
	return r.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		rt, err := parentRouting(ctx, r.requisitions.RowRepo, line.RequisitionID, requisitionRouting)
		if err != nil {
			return err
		}
		return r.Save(ctx, line.ID, line, rt)
	})
}

func (r *RequisitionLineRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, func(ctx context.Context, line *requisition.Line) (changelog.Routing, error) {
		return parentRouting(ctx, r.requisitions.RowRepo, line.RequisitionID, requisitionRouting)
	})
}
