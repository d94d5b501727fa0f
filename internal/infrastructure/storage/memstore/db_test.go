package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/numerator"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/wire"
)

func TestRunInTransaction_RollbackRevertsRowsAndChangelog(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")

	kept := name.NewName("N1", "Kept")
	require.NoError(t, db.Names().Upsert(ctx, kept))

	boom := errors.New("boom")
	err := db.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, db.Names().Upsert(ctx, name.NewName("N2", "Dropped")))
		require.NoError(t, db.Names().Delete(ctx, kept.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := db.Names().GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Name)

	latest, err := db.Changelog().LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

func TestChangelog_CursorsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")

	n := name.NewName("N1", "Clinic")
	require.NoError(t, db.Names().Upsert(ctx, n))
	require.NoError(t, db.Items().Upsert(ctx, item.NewItem("I1", "Amoxicillin")))
	require.NoError(t, db.Names().Delete(ctx, n.ID))

	entries, err := db.Changelog().ReadSince(ctx, changelog.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Cursor)
		assert.Equal(t, "site-a", e.SourceSiteID)
	}
	assert.Equal(t, wire.ActionDelete, entries[2].Action)
	assert.Nil(t, entries[0].StoreID)
}

func TestChangelog_ReadSinceFiltersBySource(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")

	require.NoError(t, db.Names().Upsert(ctx, name.NewName("N1", "Local")))
	remote := changelog.WithSourceSite(ctx, "central")
	require.NoError(t, db.Names().Upsert(remote, name.NewName("N2", "Pulled")))
	require.NoError(t, db.Names().Upsert(ctx, name.NewName("N3", "Local again")))

	entries, err := db.Changelog().ReadSince(ctx, changelog.Filter{SourceSiteID: "site-a", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Cursor)
	assert.Equal(t, int64(3), entries[1].Cursor)

	entries, err = db.Changelog().ReadSince(ctx, changelog.Filter{After: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "central", entries[0].SourceSiteID)
}

func TestChangelog_PruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")
	for _, code := range []string{"N1", "N2", "N3"} {
		require.NoError(t, db.Names().Upsert(ctx, name.NewName(code, code)))
	}

	pruned, err := db.Changelog().PruneThrough(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	latest, err := db.Changelog().LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	require.NoError(t, db.Names().Upsert(ctx, name.NewName("N4", "N4")))
	latest, err = db.Changelog().LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)
}

func TestInvoiceLines_MissingParentIsConflict(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")

	line := &invoice.Line{InvoiceID: "missing", ItemID: "i1", PackSize: 1}
	line.ID = "l1"
	err := db.InvoiceLines().Upsert(ctx, line)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))

	latest, err := db.Changelog().LatestCursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestInvoiceLines_RoutedByParent(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")

	inv := invoice.NewInvoice("store-a", "name-b", invoice.TypeOutboundShipment)
	require.NoError(t, db.Invoices().Upsert(ctx, inv))
	line := &invoice.Line{InvoiceID: inv.ID, ItemID: "i1", PackSize: 1}
	line.ID = "l1"
	require.NoError(t, db.InvoiceLines().Upsert(ctx, line))

	err := db.Invoices().Delete(ctx, inv.ID)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))

	entries, err := db.Changelog().ReadSince(ctx, changelog.Filter{After: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store-a", changelog.Deref(entries[0].StoreID))
	assert.Equal(t, "name-b", changelog.Deref(entries[0].NameID))
}

func TestNumbers_RollBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")
	gen := db.Numbers()

	n, err := gen.Next(ctx, numerator.KindInboundShipment, "store-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_ = db.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := gen.Next(ctx, numerator.KindInboundShipment, "store-a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return errors.New("rollback")
	})

	n, err = gen.Next(ctx, numerator.KindInboundShipment, "store-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = gen.Next(ctx, numerator.KindResponseRequisition, "store-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = gen.Next(ctx, numerator.KindInboundShipment, "")
	assert.Error(t, err)
}

func TestBuffer_RestagedRecordIsPendingAgain(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")
	buf := db.Buffer()

	rec := wire.Record{TableName: "name", RecordID: "n1", Action: wire.ActionUpsert, Data: []byte(`{"ID":"n1"}`), Cursor: 5}
	_, err := buf.Stage(ctx, "central", []wire.Record{rec})
	require.NoError(t, err)
	require.NoError(t, buf.MarkIntegrated(ctx, "central", "n1", buffer.OutcomeUpserted, ""))

	pending, err := buf.Unintegrated(ctx, "central", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rec.Cursor = 9
	_, err = buf.Stage(ctx, "central", []wire.Record{rec})
	require.NoError(t, err)

	pending, err = buf.Unintegrated(ctx, "central", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ReceiptSeq)

	require.NoError(t, buf.MarkFailed(ctx, "central", "n1", "bad payload"))
	got, err := buf.Get(ctx, "central", "n1")
	require.NoError(t, err)
	require.NotNil(t, got.IntegrationError)
	assert.False(t, got.IsIntegrated())

	assert.True(t, apperror.IsNotFound(buf.MarkFailed(ctx, "central", "nope", "x")))
}

func TestBuffer_FailedRecordsQueueBehindNewOnes(t *testing.T) {
	ctx := context.Background()
	buf := New("site-a").Buffer()

	stage := func(ids ...string) {
		t.Helper()
		recs := make([]wire.Record, 0, len(ids))
		for _, id := range ids {
			recs = append(recs, wire.Record{TableName: "item", RecordID: id, Action: wire.ActionUpsert, Data: []byte(`{}`)})
		}
		_, err := buf.Stage(ctx, "central", recs)
		require.NoError(t, err)
	}
	pendingIDs := func() []string {
		t.Helper()
		pending, err := buf.Unintegrated(ctx, "central", 0)
		require.NoError(t, err)
		ids := make([]string, 0, len(pending))
		for _, r := range pending {
			ids = append(ids, r.RecordID)
		}
		return ids
	}

	stage("a", "b")
	require.NoError(t, buf.MarkFailed(ctx, "central", "a", "missing parent"))
	require.NoError(t, buf.MarkFailed(ctx, "central", "b", "missing parent"))
	stage("c")
	assert.Equal(t, []string{"c", "a", "b"}, pendingIDs())

	require.NoError(t, buf.MarkFailed(ctx, "central", "a", "missing parent"))
	assert.Equal(t, []string{"c", "b", "a"}, pendingIDs())

	limited, err := buf.Unintegrated(ctx, "central", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].RecordID)
}

func TestCursors_NeverMoveBackwards(t *testing.T) {
	ctx := context.Background()
	db := New("site-a")
	cur := db.Cursors()

	require.NoError(t, cur.Advance(ctx, "central", cursor.Push, 4))
	require.NoError(t, cur.Advance(ctx, "central", cursor.Push, 4))
	assert.Error(t, cur.Advance(ctx, "central", cursor.Push, 3))

	v, err := cur.Get(ctx, "central", cursor.Push)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	v, err = cur.Get(ctx, "central", cursor.Pull)
	require.NoError(t, err)
	assert.Zero(t, v)
}
