package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/config"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/hub"
	"sitesync/internal/sync/status"
	"sitesync/pkg/logger"
)

type twoSites struct {
	rt     *Runtime
	a, b   *Site
	nameA  *name.Name
	nameB  *name.Name
	storeA *store.Store
	storeB *store.Store
	item   *item.Item
}

// newTwoSites builds a warehouse site and a clinic site exchanging records
// through an in-process hub. The warehouse enters the shared catalogue.
func newTwoSites(t *testing.T) *twoSites {
	t.Helper()
	ctx := context.Background()

	nameA := name.NewName("WH", "Central Warehouse")
	nameB := name.NewName("CL", "Clinic")
	storeA := store.NewStore("WH", "Warehouse store", nameA.ID, "site-a")
	storeB := store.NewStore("CL", "Clinic store", nameB.ID, "site-b")

	cfg := config.Default()
	cfg.Sites = []config.SiteConfig{{SiteID: "site-a"}, {SiteID: "site-b"}}
	cfg.Hub.Sites = []hub.Site{
		{ID: "site-a", Stores: []string{storeA.ID}, Names: []string{nameA.ID}},
		{ID: "site-b", Stores: []string{storeB.ID}, Names: []string{nameB.ID}},
	}

	rt, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	require.NotNil(t, rt.Hub)

	a, ok := rt.Site("site-a")
	require.True(t, ok)
	b, ok := rt.Site("site-b")
	require.True(t, ok)

	w := &twoSites{rt: rt, a: a, b: b, nameA: nameA, nameB: nameB, storeA: storeA, storeB: storeB,
		item: item.NewItem("AMX500", "Amoxicillin 500mg")}

	repos := a.Backend.Repos
	require.NoError(t, repos.Names().Upsert(ctx, nameA))
	require.NoError(t, repos.Names().Upsert(ctx, nameB))
	require.NoError(t, repos.Stores().Upsert(ctx, storeA))
	require.NoError(t, repos.Stores().Upsert(ctx, storeB))
	require.NoError(t, repos.Items().Upsert(ctx, w.item))
	return w
}

func cycle(t *testing.T, s *Site) *status.RunStatus {
	t.Helper()
	run, err := s.Driver.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, status.PhaseDone, run.Phase)
	return run
}

func TestShipmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newTwoSites(t)

	outbound := invoice.NewInvoice(w.storeA.ID, w.nameB.ID, invoice.TypeOutboundShipment)
	outbound.SetStatus(invoice.StatusPicked, time.Now())
	require.NoError(t, w.a.Backend.Repos.Invoices().Upsert(ctx, outbound))
	line := &invoice.Line{InvoiceID: outbound.ID, ItemID: w.item.ID, ItemName: w.item.Name, PackSize: 10, NumberOfPacks: 4}
	line.ID = "line-1"
	require.NoError(t, w.a.Backend.Repos.InvoiceLines().Upsert(ctx, line))

	run := cycle(t, w.a)
	assert.Equal(t, 7, run.Counters.Pushed)

	run = cycle(t, w.b)
	assert.Equal(t, 7, run.Counters.Pulled)
	assert.Equal(t, 7, run.Counters.Integrated)
	assert.Equal(t, 1, run.Counters.Derived)
	assert.Zero(t, run.Counters.ProcessorErrors)

	inbound, err := w.b.Backend.Repos.Invoices().FindByLinkedID(ctx, outbound.ID)
	require.NoError(t, err)
	assert.Equal(t, w.storeB.ID, inbound.StoreID)
	assert.Equal(t, w.nameA.ID, inbound.NameID)
	assert.Equal(t, int64(1), inbound.InvoiceNumber)

	lines, err := w.b.Backend.Repos.InvoiceLines().ListByInvoice(ctx, inbound.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 4.0, lines[0].NumberOfPacks)
	assert.Equal(t, "Amoxicillin 500mg", lines[0].ItemName)

	// The derived rows travel back to the warehouse on the next cycles.
	run = cycle(t, w.b)
	assert.Equal(t, 3, run.Counters.Pushed)
	assert.Zero(t, run.Counters.Derived)

	cycle(t, w.a)
	got, err := w.a.Backend.Repos.Invoices().GetByID(ctx, outbound.ID)
	require.NoError(t, err)
	require.True(t, got.IsLinked())
	assert.Equal(t, inbound.ID, *got.LinkedInvoiceID)

	mirrored, err := w.a.Backend.Repos.Invoices().GetByID(ctx, inbound.ID)
	require.NoError(t, err)
	assert.True(t, mirrored.IsInbound())

	// Nothing is left to exchange.
	assert.Zero(t, cycle(t, w.a).Counters.Pushed)
	run = cycle(t, w.b)
	assert.Zero(t, run.Counters.Pulled)
	assert.Zero(t, run.Counters.Pushed)
}

func TestRequisitionAnsweredBySupplier(t *testing.T) {
	ctx := context.Background()
	w := newTwoSites(t)
	cycle(t, w.a)
	cycle(t, w.b)

	request := requisition.NewRequisition(w.storeB.ID, w.nameA.ID, requisition.TypeRequest)
	request.SetStatus(requisition.StatusSent, time.Now())
	require.NoError(t, w.b.Backend.Repos.Requisitions().Upsert(ctx, request))
	line := &requisition.Line{RequisitionID: request.ID, ItemID: w.item.ID, RequestedQuantity: 120}
	line.ID = "req-line-1"
	require.NoError(t, w.b.Backend.Repos.RequisitionLines().Upsert(ctx, line))

	assert.Equal(t, 2, cycle(t, w.b).Counters.Pushed)

	run := cycle(t, w.a)
	assert.Equal(t, 2, run.Counters.Pulled)
	assert.Equal(t, 1, run.Counters.Derived)

	response, err := w.a.Backend.Repos.Requisitions().FindByLinkedID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, requisition.TypeResponse, response.Type)
	assert.Equal(t, w.storeA.ID, response.StoreID)
	assert.Equal(t, int64(1), response.RequisitionNumber)

	lines, err := w.a.Backend.Repos.RequisitionLines().ListByRequisition(ctx, response.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 120.0, lines[0].RequestedQuantity)
}

func TestPruneAfterSync(t *testing.T) {
	ctx := context.Background()
	w := newTwoSites(t)
	cycle(t, w.a)

	pruned, err := w.a.Driver.PruneAcknowledged(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pruned)

	latest, err := w.a.Backend.Changelog.LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	_, err := Build(ctx, config.Default(), logger.NewNop())
	assert.Error(t, err)

	cfg := config.Default()
	cfg.SiteID = "site-a"
	cfg.Remote.URL = "http://hub.example:8080"
	rt, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Hub)
	assert.Equal(t, []string{"site-a"}, rt.Scheduler.Sites())
	assert.Len(t, rt.Backends(), 1)
	_, ok := rt.Site("site-b")
	assert.False(t, ok)

	cfg.Remote.URL = "::not a url"
	_, err = Build(ctx, cfg, logger.NewNop())
	assert.Error(t, err)
}
