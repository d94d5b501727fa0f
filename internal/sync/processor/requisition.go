package processor

import (
	"context"
	"fmt"

	"sitesync/internal/core/entity"
	"sitesync/internal/core/numerator"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/requisition"
)

// RequisitionProcessors returns the requisition processors in firing order.
func RequisitionProcessors() []Processor[*requisition.Requisition] {
	return []Processor[*requisition.Requisition]{
		CreateResponseRequisition{},
		UpdateRequestRequisitionStatus{},
	}
}

// CreateResponseRequisition answers a sent request requisition addressed to
// a store of this site.
type CreateResponseRequisition struct{}

func (CreateResponseRequisition) Name() string { return "create_response_requisition" }

func (CreateResponseRequisition) TryProcess(ctx context.Context, repos domain.Repositories, in Input[*requisition.Requisition]) (string, error) {
	request := in.Record
	if request.Type != requisition.TypeRequest ||
		request.Status != requisition.StatusSent ||
		in.RecordIsActive ||
		!in.OtherPartyIsActive ||
		in.Linked != nil {
		return "", nil
	}

	supplying, err := repos.Stores().FindByNameID(ctx, request.NameID)
	if err != nil {
		return "", fmt.Errorf("find supplying store: %w", err)
	}
	requesting, err := repos.Stores().GetByID(ctx, request.StoreID)
	if err != nil {
		return "", fmt.Errorf("find requesting store: %w", err)
	}

	response := requisition.NewRequisition(supplying.ID, requesting.NameID, requisition.TypeResponse)
	number, err := repos.Numbers().Next(ctx, numerator.KindResponseRequisition, supplying.ID)
	if err != nil {
		return "", err
	}
	response.RequisitionNumber = number
	response.LinkedRequisitionID = &request.ID
	response.TheirReference = request.TheirReference
	response.MaxMonthsOfStock = request.MaxMonthsOfStock
	if err := repos.Requisitions().Upsert(ctx, response); err != nil {
		return "", err
	}

	lines, err := repos.RequisitionLines().ListByRequisition(ctx, request.ID)
	if err != nil {
		return "", err
	}
	for _, src := range lines {
		line := &requisition.Line{
			BaseRow:           entity.NewBaseRow(),
			RequisitionID:     response.ID,
			ItemID:            src.ItemID,
			RequestedQuantity: src.RequestedQuantity,
			SuggestedQuantity: src.SuggestedQuantity,
			Comment:           src.Comment,
		}
		if err := repos.RequisitionLines().Upsert(ctx, line); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("created response requisition %s with %d lines for request %s", response.ID, len(lines), request.ID), nil
}

// UpdateRequestRequisitionStatus finalises the request requisition once its
// response has been finalised.
type UpdateRequestRequisitionStatus struct{}

func (UpdateRequestRequisitionStatus) Name() string { return "update_request_requisition_status" }

func (UpdateRequestRequisitionStatus) TryProcess(ctx context.Context, repos domain.Repositories, in Input[*requisition.Requisition]) (string, error) {
	response, request := in.Record, in.Linked
	if response.Type != requisition.TypeResponse ||
		response.Status != requisition.StatusFinalised ||
		request == nil ||
		!in.LinkedIsActive ||
		request.Type != requisition.TypeRequest ||
		request.Status == requisition.StatusFinalised {
		return "", nil
	}

	at := now()
	if response.FinalisedDatetime != nil {
		at = *response.FinalisedDatetime
	}
	request.SetStatus(requisition.StatusFinalised, at)
	request.LinkedRequisitionID = &response.ID
	if err := repos.Requisitions().Upsert(ctx, request); err != nil {
		return "", err
	}

	return fmt.Sprintf("finalised request requisition %s", request.ID), nil
}
