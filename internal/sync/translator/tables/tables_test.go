package tables

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/types"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/infrastructure/storage/memstore"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

func upsertRecord(t *testing.T, table, id string, payload any) wire.Record {
	t.Helper()
	data, err := wire.Encode(payload)
	require.NoError(t, err)
	return wire.Record{TableName: table, RecordID: id, Action: wire.ActionUpsert, Data: data, Cursor: 1}
}

func TestDefaultRegistry_PullOrder(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	rank := r.Rank()
	assert.Less(t, rank[TableName], rank[TableStore])
	assert.Less(t, rank[TableStore], rank[TableInvoice])
	assert.Less(t, rank[TableInvoice], rank[TableInvoiceLine])
	assert.Less(t, rank[TableItem], rank[TableInvoiceLine])
	assert.Less(t, rank[TableRequisition], rank[TableRequisitionLine])
	assert.Len(t, r.PullOrder(), 7)
}

func TestInvoiceStatusMapping(t *testing.T) {
	cases := []struct {
		legacyType string
		status     string
		want       invoice.Status
	}{
		{legacyCustomerInvoice, legacyNew, invoice.StatusNew},
		{legacyCustomerInvoice, legacySuggested, invoice.StatusPicked},
		{legacyCustomerInvoice, legacyFinalised, invoice.StatusShipped},
		{legacySupplierInvoice, legacySuggested, invoice.StatusShipped},
		{legacySupplierInvoice, legacyConfirmed, invoice.StatusDelivered},
		{legacySupplierInvoice, legacyFinalised, invoice.StatusVerified},
	}
	for _, tc := range cases {
		t.Run(tc.legacyType+"_"+tc.status, func(t *testing.T) {
			inv, err := InvoiceFromWire(LegacyInvoice{ID: "i1", Type: tc.legacyType, Status: tc.status})
			require.NoError(t, err)
			assert.Equal(t, tc.want, inv.Status)
		})
	}

	om := string(invoice.StatusAllocated)
	inv, err := InvoiceFromWire(LegacyInvoice{ID: "i1", Type: legacyCustomerInvoice, Status: legacyNew, OmStatus: &om})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusAllocated, inv.Status)

	_, err = InvoiceFromWire(LegacyInvoice{ID: "i1", Type: legacyCustomerInvoice, Status: "zz"})
	assert.Error(t, err)
}

func TestInvoiceWireRoundTrip(t *testing.T) {
	shipped := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	inv := invoice.NewInvoice("store-a", "name-b", invoice.TypeOutboundShipment)
	inv.InvoiceNumber = 12
	inv.SetStatus(invoice.StatusShipped, shipped)
	ref := "PO-7"
	inv.TheirReference = &ref

	legacy := InvoiceToWire(inv)
	assert.Equal(t, legacyCustomerInvoice, legacy.Type)
	assert.Equal(t, legacyConfirmed, legacy.Status)

	back, err := InvoiceFromWire(legacy)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, back.ID)
	assert.Equal(t, invoice.StatusShipped, back.Status)
	assert.Equal(t, int64(12), back.InvoiceNumber)
	assert.Equal(t, "PO-7", *back.TheirReference)
	require.NotNil(t, back.ShippedDatetime)
	assert.True(t, shipped.Equal(*back.ShippedDatetime))
	assert.Nil(t, back.LinkedInvoiceID)
}

func TestItemFromWire_Defaults(t *testing.T) {
	it, err := ItemFromWire(LegacyItem{ID: "i1", Code: "AMX", Name: "Amoxicillin"})
	require.NoError(t, err)
	assert.Equal(t, item.TypeStock, it.Type)
	assert.Equal(t, 1.0, it.DefaultPackSize)

	_, err = ItemFromWire(LegacyItem{ID: "i1", TypeOf: "cross_reference"})
	assert.Error(t, err)
}

func TestStoreFromWire_RequiresSite(t *testing.T) {
	_, err := StoreFromWire(LegacyStore{ID: "s1", NameID: "n1"})
	assert.Error(t, err)
}

func TestInvoiceTranslator_UnsupportedTypeIsNotMine(t *testing.T) {
	db := memstore.New("site-a")
	rec := upsertRecord(t, TableInvoice, "i1", LegacyInvoice{ID: "i1", Type: "in", Status: legacyNew})

	res, err := InvoiceTranslator{}.TryTranslatePull(context.Background(), db, rec)
	require.NoError(t, err)
	assert.Equal(t, translator.PullNotMine, res.Kind)
	assert.NotEmpty(t, res.Reason)
}

func TestStoreTranslator_MissingNameIsTranslationError(t *testing.T) {
	db := memstore.New("site-a")
	rec := upsertRecord(t, TableStore, "s1", LegacyStore{ID: "s1", NameID: "n1", SiteID: "site-b"})

	_, err := StoreTranslator{}.TryTranslatePull(context.Background(), db, rec)
	assert.True(t, apperror.IsTranslation(err))
}

func TestTryTranslatePull_PayloadIDMismatch(t *testing.T) {
	db := memstore.New("site-a")
	rec := upsertRecord(t, TableName, "n1", LegacyName{ID: "n2"})

	_, err := NameTranslator{}.TryTranslatePull(context.Background(), db, rec)
	assert.True(t, apperror.IsTranslation(err))
}

func TestInvoiceLineTranslator_UsesLocalItem(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("site-a")

	it := item.NewItem("PCM", "Paracetamol 500mg")
	require.NoError(t, db.Items().Upsert(ctx, it))
	inv := invoice.NewInvoice("store-a", "name-b", invoice.TypeOutboundShipment)
	require.NoError(t, db.Invoices().Upsert(ctx, inv))

	rec := upsertRecord(t, TableInvoiceLine, "l1", LegacyInvoiceLine{
		ID:        "l1",
		InvoiceID: inv.ID,
		ItemID:    it.ID,
		ItemName:  "stale name",
		Quantity:  3,
		SellPrice: types.MustMoney("2.50"),
	})

	res, err := InvoiceLineTranslator{}.TryTranslatePull(ctx, db, rec)
	require.NoError(t, err)
	require.Equal(t, translator.PullUpsert, res.Kind)
	require.NoError(t, res.Apply(ctx, db))

	line, err := db.InvoiceLines().GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", line.ItemName)
	assert.Equal(t, "PCM", line.ItemCode)
	assert.Equal(t, 1.0, line.PackSize)
	assert.True(t, types.MustMoney("7.50").Equal(line.Total()))
}

func TestInvoiceTranslator_DeleteRemovesLines(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("site-a")

	inv := invoice.NewInvoice("store-a", "name-b", invoice.TypeOutboundShipment)
	require.NoError(t, db.Invoices().Upsert(ctx, inv))
	line := &invoice.Line{InvoiceID: inv.ID, ItemID: "i1", PackSize: 1}
	line.ID = "l1"
	require.NoError(t, db.InvoiceLines().Upsert(ctx, line))

	rec := wire.Record{TableName: TableInvoice, RecordID: inv.ID, Action: wire.ActionDelete}
	res, err := InvoiceTranslator{}.TryTranslatePull(ctx, db, rec)
	require.NoError(t, err)
	require.Equal(t, translator.PullDelete, res.Kind)
	require.NoError(t, res.Apply(ctx, db))

	_, err = db.Invoices().GetByID(ctx, inv.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = db.InvoiceLines().GetByID(ctx, "l1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestTranslatePush(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("site-a")

	n := name.NewName("CL1", "Clinic One")
	n.IsCustomer = true
	require.NoError(t, db.Names().Upsert(ctx, n))

	entries, err := db.Changelog().ReadSince(ctx, changelog.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rec, err := NameTranslator{}.TranslatePush(ctx, db, entries[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "site-a", rec.SourceSiteID)
	assert.Equal(t, int64(1), rec.Cursor)

	var legacy LegacyName
	require.NoError(t, wire.Decode(*rec, &legacy))
	assert.Equal(t, "Clinic One", legacy.Name)
	assert.True(t, legacy.Customer)

	require.NoError(t, db.Names().Delete(ctx, n.ID))
	rec, err = NameTranslator{}.TranslatePush(ctx, db, entries[0])
	require.NoError(t, err)
	assert.Nil(t, rec)
}
