package tables

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// LegacyRequisition is the wire payload of the requisition table.
type LegacyRequisition struct {
	ID                  string  `json:"ID"`
	StoreID             string  `json:"store_ID"`
	NameID              string  `json:"name_ID"`
	SerialNumber        int64   `json:"serial_number"`
	Type                string  `json:"type"`
	Status              string  `json:"status"`
	RequesterReference  string  `json:"requester_reference"`
	Comment             string  `json:"comment"`
	MaxMonthsOfStock    float64 `json:"max_months_of_stock"`
	LinkedRequisitionID string  `json:"linked_requisition_id"`

	CreatedDatetime   time.Time  `json:"created_datetime"`
	SentDatetime      *time.Time `json:"sent_datetime,omitempty"`
	FinalisedDatetime *time.Time `json:"finalised_datetime,omitempty"`
}

var requisitionStatusFromLegacy = map[string]requisition.Status{
	legacySuggested: requisition.StatusDraft,
	legacyNew:       requisition.StatusNew,
	legacyConfirmed: requisition.StatusSent,
	legacyFinalised: requisition.StatusFinalised,
}

var requisitionStatusToLegacy = map[requisition.Status]string{
	requisition.StatusDraft:     legacySuggested,
	requisition.StatusNew:       legacyNew,
	requisition.StatusSent:      legacyConfirmed,
	requisition.StatusFinalised: legacyFinalised,
}

// RequisitionFromWire converts a payload into a row.
func RequisitionFromWire(l LegacyRequisition) (*requisition.Requisition, error) {
	t := requisition.Type(l.Type)
	if t != requisition.TypeRequest && t != requisition.TypeResponse {
		return nil, fmt.Errorf("unknown requisition type %q", l.Type)
	}
	status, ok := requisitionStatusFromLegacy[l.Status]
	if !ok {
		return nil, fmt.Errorf("unknown requisition status %q", l.Status)
	}
	return &requisition.Requisition{
		BaseRow:             entity.BaseRow{ID: l.ID},
		StoreID:             l.StoreID,
		NameID:              l.NameID,
		RequisitionNumber:   l.SerialNumber,
		Type:                t,
		Status:              status,
		TheirReference:      strPtr(l.RequesterReference),
		Comment:             strPtr(l.Comment),
		MaxMonthsOfStock:    l.MaxMonthsOfStock,
		LinkedRequisitionID: strPtr(l.LinkedRequisitionID),
		CreatedDatetime:     l.CreatedDatetime.UTC(),
		SentDatetime:        utcPtr(l.SentDatetime),
		FinalisedDatetime:   utcPtr(l.FinalisedDatetime),
	}, nil
}

// RequisitionToWire converts a row into a payload.
func RequisitionToWire(r *requisition.Requisition) LegacyRequisition {
	return LegacyRequisition{
		ID:                  r.ID,
		StoreID:             r.StoreID,
		NameID:              r.NameID,
		SerialNumber:        r.RequisitionNumber,
		Type:                string(r.Type),
		Status:              requisitionStatusToLegacy[r.Status],
		RequesterReference:  strVal(r.TheirReference),
		Comment:             strVal(r.Comment),
		MaxMonthsOfStock:    r.MaxMonthsOfStock,
		LinkedRequisitionID: strVal(r.LinkedRequisitionID),
		CreatedDatetime:     r.CreatedDatetime,
		SentDatetime:        r.SentDatetime,
		FinalisedDatetime:   r.FinalisedDatetime,
	}
}

// RequisitionTranslator translates requisition headers.
type RequisitionTranslator struct{}

func (RequisitionTranslator) TableName() string { return TableRequisition }

func (RequisitionTranslator) PullDependencies() []string {
	return []string{TableStore, TableName}
}

func (RequisitionTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyRequisition) (*requisition.Requisition, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			return RequisitionFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *requisition.Requisition) error {
			return c.Requisitions().Upsert(ctx, row)
		},
		deleteRequisition,
	)
}

func (RequisitionTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.Requisitions().GetByID, RequisitionToWire)
}

func deleteRequisition(ctx context.Context, c domain.Repositories, id string) error {
	lines, err := c.RequisitionLines().ListByRequisition(ctx, id)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := c.RequisitionLines().Delete(ctx, line.ID); err != nil {
			return err
		}
	}
	return c.Requisitions().Delete(ctx, id)
}
