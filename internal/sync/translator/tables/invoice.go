package tables

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// Legacy invoice types: customer invoice and supplier invoice.
const (
	legacyCustomerInvoice = "ci"
	legacySupplierInvoice = "si"
)

// Legacy invoice statuses.
const (
	legacyNew       = "nw"
	legacySuggested = "sg"
	legacyConfirmed = "cn"
	legacyFinalised = "fn"
)

// LegacyInvoice is the wire payload of the invoice table. Legacy sites only
// know the four-letter status; om_status carries the full status and wins
// when present.
type LegacyInvoice struct {
	ID                  string  `json:"ID"`
	StoreID             string  `json:"store_ID"`
	NameID              string  `json:"name_ID"`
	InvoiceNum          int64   `json:"invoice_num"`
	Type                string  `json:"type"`
	Status              string  `json:"status"`
	OmStatus            *string `json:"om_status,omitempty"`
	Hold                bool    `json:"hold"`
	TheirRef            string  `json:"their_ref"`
	Comment             string  `json:"comment"`
	LinkedTransactionID string  `json:"linked_transaction_id"`

	CreatedDatetime   time.Time  `json:"created_datetime"`
	PickedDatetime    *time.Time `json:"picked_datetime,omitempty"`
	ShippedDatetime   *time.Time `json:"shipped_datetime,omitempty"`
	DeliveredDatetime *time.Time `json:"delivered_datetime,omitempty"`
	VerifiedDatetime  *time.Time `json:"verified_datetime,omitempty"`
}

// errUnsupportedInvoiceType marks legacy invoice kinds this site does not sync.
type errUnsupportedInvoiceType string

func (e errUnsupportedInvoiceType) Error() string {
	return fmt.Sprintf("unsupported invoice type %q", string(e))
}

func invoiceType(legacy string) (invoice.Type, error) {
	switch legacy {
	case legacyCustomerInvoice:
		return invoice.TypeOutboundShipment, nil
	case legacySupplierInvoice:
		return invoice.TypeInboundShipment, nil
	}
	return "", errUnsupportedInvoiceType(legacy)
}

func invoiceStatus(t invoice.Type, legacy string, om *string) (invoice.Status, error) {
	if om != nil && *om != "" {
		s := invoice.Status(*om)
		if !s.Valid() {
			return "", fmt.Errorf("unknown om_status %q", *om)
		}
		return s, nil
	}

	if t == invoice.TypeOutboundShipment {
		switch legacy {
		case legacyNew:
			return invoice.StatusNew, nil
		case legacySuggested:
			return invoice.StatusPicked, nil
		case legacyConfirmed, legacyFinalised:
			return invoice.StatusShipped, nil
		}
	} else {
		switch legacy {
		case legacyNew:
			return invoice.StatusNew, nil
		case legacySuggested:
			return invoice.StatusShipped, nil
		case legacyConfirmed:
			return invoice.StatusDelivered, nil
		case legacyFinalised:
			return invoice.StatusVerified, nil
		}
	}
	return "", fmt.Errorf("unknown invoice status %q", legacy)
}

func legacyInvoiceStatus(inv *invoice.Invoice) string {
	if inv.IsOutbound() {
		switch inv.Status {
		case invoice.StatusNew, invoice.StatusAllocated:
			return legacyNew
		case invoice.StatusPicked:
			return legacySuggested
		default:
			return legacyConfirmed
		}
	}
	switch inv.Status {
	case invoice.StatusNew, invoice.StatusAllocated, invoice.StatusPicked:
		return legacyNew
	case invoice.StatusShipped:
		return legacySuggested
	case invoice.StatusDelivered:
		return legacyConfirmed
	default:
		return legacyFinalised
	}
}

// InvoiceFromWire converts a payload into a row.
func InvoiceFromWire(l LegacyInvoice) (*invoice.Invoice, error) {
	t, err := invoiceType(l.Type)
	if err != nil {
		return nil, err
	}
	status, err := invoiceStatus(t, l.Status, l.OmStatus)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		BaseRow:           entity.BaseRow{ID: l.ID},
		StoreID:           l.StoreID,
		NameID:            l.NameID,
		InvoiceNumber:     l.InvoiceNum,
		Type:              t,
		Status:            status,
		OnHold:            l.Hold,
		TheirReference:    strPtr(l.TheirRef),
		Comment:           strPtr(l.Comment),
		LinkedInvoiceID:   strPtr(l.LinkedTransactionID),
		CreatedDatetime:   l.CreatedDatetime.UTC(),
		PickedDatetime:    utcPtr(l.PickedDatetime),
		ShippedDatetime:   utcPtr(l.ShippedDatetime),
		DeliveredDatetime: utcPtr(l.DeliveredDatetime),
		VerifiedDatetime:  utcPtr(l.VerifiedDatetime),
	}, nil
}

// InvoiceToWire converts a row into a payload.
func InvoiceToWire(inv *invoice.Invoice) LegacyInvoice {
	legacyType := legacySupplierInvoice
	if inv.IsOutbound() {
		legacyType = legacyCustomerInvoice
	}
	om := string(inv.Status)
	return LegacyInvoice{
		ID:                  inv.ID,
		StoreID:             inv.StoreID,
		NameID:              inv.NameID,
		InvoiceNum:          inv.InvoiceNumber,
		Type:                legacyType,
		Status:              legacyInvoiceStatus(inv),
		OmStatus:            &om,
		Hold:                inv.OnHold,
		TheirRef:            strVal(inv.TheirReference),
		Comment:             strVal(inv.Comment),
		LinkedTransactionID: strVal(inv.LinkedInvoiceID),
		CreatedDatetime:     inv.CreatedDatetime,
		PickedDatetime:      inv.PickedDatetime,
		ShippedDatetime:     inv.ShippedDatetime,
		DeliveredDatetime:   inv.DeliveredDatetime,
		VerifiedDatetime:    inv.VerifiedDatetime,
	}
}

// InvoiceTranslator translates shipment headers.
type InvoiceTranslator struct{}

func (InvoiceTranslator) TableName() string { return TableInvoice }

func (InvoiceTranslator) PullDependencies() []string {
	return []string{TableStore, TableName}
}

func (InvoiceTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	if rec.Action == wire.ActionUpsert {
		var probe struct {
			Type string `json:"type"`
		}
		if err := wire.Decode(rec, &probe); err != nil {
			return translator.PullResult{}, err
		}
		if _, err := invoiceType(probe.Type); err != nil {
			return translator.NotMine(err.Error()), nil
		}
	}

	return pullRecord(rec,
		func(l LegacyInvoice) (*invoice.Invoice, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			return InvoiceFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *invoice.Invoice) error {
			return c.Invoices().Upsert(ctx, row)
		},
		deleteInvoice,
	)
}

func (InvoiceTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.Invoices().GetByID, InvoiceToWire)
}

// deleteInvoice removes lines first so no line outlives its header.
func deleteInvoice(ctx context.Context, c domain.Repositories, id string) error {
	lines, err := c.InvoiceLines().ListByInvoice(ctx, id)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := c.InvoiceLines().Delete(ctx, line.ID); err != nil {
			return err
		}
	}
	return c.Invoices().Delete(ctx, id)
}
