// Package invoice provides shipments: outbound shipments issued by one store
// and the inbound shipments that receive them on the other side.
package invoice

import (
	"context"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/entity"
	"sitesync/internal/core/types"
)

// Type is the direction of a shipment.
type Type string

const (
	TypeOutboundShipment Type = "outbound_shipment"
	TypeInboundShipment  Type = "inbound_shipment"
)

// Status is the lifecycle position of a shipment.
type Status string

const (
	StatusNew       Status = "new"
	StatusAllocated Status = "allocated"
	StatusPicked    Status = "picked"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusVerified  Status = "verified"
)

var statusRank = map[Status]int{
	StatusNew:       0,
	StatusAllocated: 1,
	StatusPicked:    2,
	StatusShipped:   3,
	StatusDelivered: 4,
	StatusVerified:  5,
}

// Rank returns the lifecycle position, -1 for unknown statuses.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Before reports whether s comes earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	return s.Rank() < other.Rank()
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Invoice is a shipment header.
type Invoice struct {
	entity.BaseRow

	StoreID       string `db:"store_id" json:"storeId"`
	NameID        string `db:"name_id" json:"nameId"`
	InvoiceNumber int64  `db:"invoice_number" json:"invoiceNumber"`
	Type          Type   `db:"type" json:"type"`
	Status        Status `db:"status" json:"status"`
	OnHold        bool   `db:"on_hold" json:"onHold"`

	TheirReference *string `db:"their_reference" json:"theirReference,omitempty"`
	Comment        *string `db:"comment" json:"comment,omitempty"`

	// LinkedInvoiceID points at the counterpart shipment on the other site
	LinkedInvoiceID *string `db:"linked_invoice_id" json:"linkedInvoiceId,omitempty"`

	CreatedDatetime   time.Time  `db:"created_datetime" json:"createdDatetime"`
	PickedDatetime    *time.Time `db:"picked_datetime" json:"pickedDatetime,omitempty"`
	ShippedDatetime   *time.Time `db:"shipped_datetime" json:"shippedDatetime,omitempty"`
	DeliveredDatetime *time.Time `db:"delivered_datetime" json:"deliveredDatetime,omitempty"`
	VerifiedDatetime  *time.Time `db:"verified_datetime" json:"verifiedDatetime,omitempty"`
}

// NewInvoice creates a new shipment in status New.
func NewInvoice(storeID, nameID string, t Type) *Invoice {
	return &Invoice{
		BaseRow:         entity.NewBaseRow(),
		StoreID:         storeID,
		NameID:          nameID,
		Type:            t,
		Status:          StatusNew,
		CreatedDatetime: time.Now().UTC().Truncate(time.Second),
	}
}

// Validate implements entity.Validatable.
func (i *Invoice) Validate(ctx context.Context) error {
	if err := i.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if err := entity.RequireRef("storeId", i.StoreID); err != nil {
		return err
	}
	if err := entity.RequireRef("nameId", i.NameID); err != nil {
		return err
	}
	if i.Type != TypeOutboundShipment && i.Type != TypeInboundShipment {
		return apperror.NewValidation("invalid invoice type").
			WithDetail("field", "type").
			WithDetail("value", string(i.Type))
	}
	if !i.Status.Valid() {
		return apperror.NewValidation("invalid invoice status").
			WithDetail("field", "status").
			WithDetail("value", string(i.Status))
	}
	return nil
}

// IsOutbound reports whether the invoice is an outbound shipment.
func (i *Invoice) IsOutbound() bool { return i.Type == TypeOutboundShipment }

// IsInbound reports whether the invoice is an inbound shipment.
func (i *Invoice) IsInbound() bool { return i.Type == TypeInboundShipment }

// IsLinked reports whether the counterpart link is set.
func (i *Invoice) IsLinked() bool {
	return i.LinkedInvoiceID != nil && *i.LinkedInvoiceID != ""
}

// SetStatus moves the invoice to status and stamps the matching datetime.
func (i *Invoice) SetStatus(status Status, at time.Time) {
	i.Status = status
	at = at.UTC()
	switch status {
	case StatusPicked:
		i.PickedDatetime = &at
	case StatusShipped:
		i.ShippedDatetime = &at
	case StatusDelivered:
		i.DeliveredDatetime = &at
	case StatusVerified:
		i.VerifiedDatetime = &at
	}
}

// Line is one item row of a shipment.
type Line struct {
	entity.BaseRow

	InvoiceID string `db:"invoice_id" json:"invoiceId"`
	ItemID    string `db:"item_id" json:"itemId"`
	ItemCode  string `db:"item_code" json:"itemCode"`
	ItemName  string `db:"item_name" json:"itemName"`

	Batch         *string `db:"batch" json:"batch,omitempty"`
	PackSize      float64 `db:"pack_size" json:"packSize"`
	NumberOfPacks float64 `db:"number_of_packs" json:"numberOfPacks"`

	CostPrice types.Money `db:"cost_price" json:"costPrice"`
	SellPrice types.Money `db:"sell_price" json:"sellPrice"`

	Note *string `db:"note" json:"note,omitempty"`
}

// Validate implements entity.Validatable.
func (l *Line) Validate(ctx context.Context) error {
	if err := l.BaseRow.Validate(ctx); err != nil {
		return err
	}
	if err := entity.RequireRef("invoiceId", l.InvoiceID); err != nil {
		return err
	}
	if err := entity.RequireRef("itemId", l.ItemID); err != nil {
		return err
	}
	if l.PackSize <= 0 {
		return apperror.NewValidation("pack size must be positive").
			WithDetail("field", "packSize")
	}
	if l.NumberOfPacks < 0 {
		return apperror.NewValidation("number of packs must not be negative").
			WithDetail("field", "numberOfPacks")
	}
	return nil
}

// Total returns the sell value of the line.
func (l *Line) Total() types.Money {
	return types.LineTotal(l.NumberOfPacks, l.PackSize, l.SellPrice)
}
