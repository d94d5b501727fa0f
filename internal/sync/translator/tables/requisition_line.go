package tables

import (
	"context"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// LegacyRequisitionLine is the wire payload of the requisition_line table.
type LegacyRequisitionLine struct {
	ID                string  `json:"ID"`
	RequisitionID     string  `json:"requisition_ID"`
	ItemID            string  `json:"item_ID"`
	RequestedQuantity float64 `json:"Cust_stock_order"`
	SuggestedQuantity float64 `json:"suggested_quantity"`
	SupplyQuantity    float64 `json:"actualQuan"`
	Comment           string  `json:"comment"`
}

// RequisitionLineFromWire converts a payload into a row.
func RequisitionLineFromWire(l LegacyRequisitionLine) (*requisition.Line, error) {
	return &requisition.Line{
		BaseRow:           entity.BaseRow{ID: l.ID},
		RequisitionID:     l.RequisitionID,
		ItemID:            l.ItemID,
		RequestedQuantity: l.RequestedQuantity,
		SuggestedQuantity: l.SuggestedQuantity,
		SupplyQuantity:    l.SupplyQuantity,
		Comment:           strPtr(l.Comment),
	}, nil
}

// RequisitionLineToWire converts a row into a payload.
func RequisitionLineToWire(line *requisition.Line) LegacyRequisitionLine {
	return LegacyRequisitionLine{
		ID:                line.ID,
		RequisitionID:     line.RequisitionID,
		ItemID:            line.ItemID,
		RequestedQuantity: line.RequestedQuantity,
		SuggestedQuantity: line.SuggestedQuantity,
		SupplyQuantity:    line.SupplyQuantity,
		Comment:           strVal(line.Comment),
	}
}

// RequisitionLineTranslator translates requisition lines.
type RequisitionLineTranslator struct{}

func (RequisitionLineTranslator) TableName() string { return TableRequisitionLine }

func (RequisitionLineTranslator) PullDependencies() []string {
	return []string{TableRequisition, TableItem}
}

func (RequisitionLineTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyRequisitionLine) (*requisition.Line, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			req, err := conn.Requisitions().GetByID(ctx, l.RequisitionID)
			if err := requireRow(rec, "requisition", l.RequisitionID, req, err); err != nil {
				return nil, err
			}
			it, err := conn.Items().GetByID(ctx, l.ItemID)
			if err := requireRow(rec, "item", l.ItemID, it, err); err != nil {
				return nil, err
			}
			return RequisitionLineFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *requisition.Line) error {
			return c.RequisitionLines().Upsert(ctx, row)
		},
		func(ctx context.Context, c domain.Repositories, id string) error {
			return c.RequisitionLines().Delete(ctx, id)
		},
	)
}

func (RequisitionLineTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.RequisitionLines().GetByID, RequisitionLineToWire)
}
