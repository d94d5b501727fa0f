package tables

import (
	"context"

	"sitesync/internal/core/entity"
	"sitesync/internal/core/types"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// LegacyInvoiceLine is the wire payload of the invoice_line table.
// quantity is the number of packs.
type LegacyInvoiceLine struct {
	ID        string      `json:"ID"`
	InvoiceID string      `json:"transaction_ID"`
	ItemID    string      `json:"item_ID"`
	ItemCode  string      `json:"item_code"`
	ItemName  string      `json:"item_name"`
	Batch     string      `json:"batch"`
	PackSize  float64     `json:"pack_size"`
	Quantity  float64     `json:"quantity"`
	CostPrice types.Money `json:"cost_price"`
	SellPrice types.Money `json:"sell_price"`
	Note      string      `json:"note"`
}

// InvoiceLineFromWire converts a payload into a row. Item code and name are
// taken from the payload; TryTranslatePull overrides them from the local
// item row.
func InvoiceLineFromWire(l LegacyInvoiceLine) (*invoice.Line, error) {
	packSize := l.PackSize
	if packSize == 0 {
		packSize = 1
	}
	return &invoice.Line{
		BaseRow:       entity.BaseRow{ID: l.ID},
		InvoiceID:     l.InvoiceID,
		ItemID:        l.ItemID,
		ItemCode:      l.ItemCode,
		ItemName:      l.ItemName,
		Batch:         strPtr(l.Batch),
		PackSize:      packSize,
		NumberOfPacks: l.Quantity,
		CostPrice:     l.CostPrice,
		SellPrice:     l.SellPrice,
		Note:          strPtr(l.Note),
	}, nil
}

// InvoiceLineToWire converts a row into a payload.
func InvoiceLineToWire(line *invoice.Line) LegacyInvoiceLine {
	return LegacyInvoiceLine{
		ID:        line.ID,
		InvoiceID: line.InvoiceID,
		ItemID:    line.ItemID,
		ItemCode:  line.ItemCode,
		ItemName:  line.ItemName,
		Batch:     strVal(line.Batch),
		PackSize:  line.PackSize,
		Quantity:  line.NumberOfPacks,
		CostPrice: line.CostPrice,
		SellPrice: line.SellPrice,
		Note:      strVal(line.Note),
	}
}

// InvoiceLineTranslator translates shipment lines.
type InvoiceLineTranslator struct{}

func (InvoiceLineTranslator) TableName() string { return TableInvoiceLine }

func (InvoiceLineTranslator) PullDependencies() []string {
	return []string{TableInvoice, TableItem}
}

func (InvoiceLineTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyInvoiceLine) (*invoice.Line, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			inv, err := conn.Invoices().GetByID(ctx, l.InvoiceID)
			if err := requireRow(rec, "invoice", l.InvoiceID, inv, err); err != nil {
				return nil, err
			}
			it, err := conn.Items().GetByID(ctx, l.ItemID)
			if err := requireRow(rec, "item", l.ItemID, it, err); err != nil {
				return nil, err
			}

			line, err := InvoiceLineFromWire(l)
			if err != nil {
				return nil, err
			}
			line.ItemCode = it.Code
			line.ItemName = it.Name
			return line, nil
		},
		func(ctx context.Context, c domain.Repositories, row *invoice.Line) error {
			return c.InvoiceLines().Upsert(ctx, row)
		},
		func(ctx context.Context, c domain.Repositories, id string) error {
			return c.InvoiceLines().Delete(ctx, id)
		},
	)
}

func (InvoiceLineTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.InvoiceLines().GetByID, InvoiceLineToWire)
}
