// Package requisition provides stock requests between stores.
// A request requisition raised by one store is answered by a response
// requisition on the supplying store.
package requisition

import (
	"context"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/entity"
)

// Type is the side of the requisition.
type Type string

const (
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
)

// Status is the lifecycle position of a requisition.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusNew       Status = "new"
	StatusSent      Status = "sent"
	StatusFinalised Status = "finalised"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusNew, StatusSent, StatusFinalised:
		return true
	}
	return false
}

// Requisition is a requisition header.
type Requisition struct {
	entity.BaseRow

	StoreID           string `db:"store_id" json:"storeId"`
	NameID            string `db:"name_id" json:"nameId"`
	RequisitionNumber int64  `db:"requisition_number" json:"requisitionNumber"`
	Type              Type   `db:"type" json:"type"`
	Status            Status `db:"status" json:"status"`

	TheirReference   *string `db:"their_reference" json:"theirReference,omitempty"`
	Comment          *string `db:"comment" json:"comment,omitempty"`
	MaxMonthsOfStock float64 `db:"max_months_of_stock" json:"maxMonthsOfStock"`

	// LinkedRequisitionID points at the counterpart requisition
	LinkedRequisitionID *string `db:"linked_requisition_id" json:"linkedRequisitionId,omitempty"`

	CreatedDatetime   time.Time  `db:"created_datetime" json:"createdDatetime"`
	SentDatetime      *time.Time `db:"sent_datetime" json:"sentDatetime,omitempty"`
	FinalisedDatetime *time.Time `db:"finalised_datetime" json:"finalisedDatetime,omitempty"`
}

// NewRequisition creates a requisition in status New.
func NewRequisition(storeID, nameID string, t Type) *Requisition {
	return &Requisition{
		BaseRow:         entity.NewBaseRow(),
		StoreID:         storeID,
		NameID:          nameID,
		Type:            t,
		Status:          StatusNew,
		CreatedDatetime: time.Now().UTC().Truncate(time.Second),
	}
}

// Validate implements entity.Validatable.
func (r *Requisition) Validate(ctx context.Context) error {
	if err := r.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if err := entity.RequireRef("storeId", r.StoreID); err != nil {
		return err
	}
	if err := entity.RequireRef("nameId", r.NameID); err != nil {
		return err
	}
	if r.Type != TypeRequest && r.Type != TypeResponse {
		return apperror.NewValidation("invalid requisition type").
			WithDetail("field", "type").
			WithDetail("value", string(r.Type))
	}
	if !r.Status.Valid() {
		return apperror.NewValidation("invalid requisition status").
			WithDetail("field", "status").
			WithDetail("value", string(r.Status))
	}
	return nil
}

// IsLinked reports whether the counterpart link is set.
func (r *Requisition) IsLinked() bool {
	return r.LinkedRequisitionID != nil && *r.LinkedRequisitionID != ""
}

// SetStatus moves the requisition to status and stamps the matching datetime.
func (r *Requisition) SetStatus(status Status, at time.Time) {
	r.Status = status
	at = at.UTC()
	switch status {
	case StatusSent:
		r.SentDatetime = &at
	case StatusFinalised:
		r.FinalisedDatetime = &at
	}
}

// Line is one item row of a requisition.
type Line struct {
	entity.BaseRow

	RequisitionID string `db:"requisition_id" json:"requisitionId"`
	ItemID        string `db:"item_id" json:"itemId"`

	RequestedQuantity float64 `db:"requested_quantity" json:"requestedQuantity"`
	SuggestedQuantity float64 `db:"suggested_quantity" json:"suggestedQuantity"`
	SupplyQuantity    float64 `db:"supply_quantity" json:"supplyQuantity"`

	Comment *string `db:"comment" json:"comment,omitempty"`
}

// Validate implements entity.Validatable.
func (l *Line) Validate(ctx context.Context) error {
	if err := l.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if err := entity.RequireRef("requisitionId", l.RequisitionID); err != nil {
		return err
	}
	if err := entity.RequireRef("itemId", l.ItemID); err != nil {
		return err
	}
	if l.RequestedQuantity < 0 || l.SupplyQuantity < 0 {
		return apperror.NewValidation("quantities must not be negative").
			WithDetail("field", "requestedQuantity")
	}
	return nil
}
