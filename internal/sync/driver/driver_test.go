package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/hub"
	"sitesync/internal/infrastructure/storage/memstore"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/integration"
	"sitesync/internal/sync/peer"
	"sitesync/internal/sync/processor"
	"sitesync/internal/sync/status"
	"sitesync/internal/sync/translator/tables"
	"sitesync/internal/sync/wire"
	"sitesync/pkg/logger"
)

func testConfig() Config {
	return Config{
		BatchSize:            2,
		RetryAttempts:        3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
		IntegrationLimit:     100,
	}
}

func newDriver(t *testing.T, siteID string, p peer.Peer) (*Driver, *memstore.DB) {
	t.Helper()
	registry, err := tables.NewDefaultRegistry()
	require.NoError(t, err)

	db := memstore.New(siteID)
	log := logger.NewNop()
	engine := integration.NewEngine(integration.Config{
		SiteID: siteID, Registry: registry, Buffer: db.Buffer(), Repos: db, Tx: db, Logger: log,
	})
	pipeline := processor.NewPipeline(processor.Config{
		SiteID:           siteID,
		Repos:            db,
		Tx:               db,
		Logger:           log,
		InvoiceTable:     domain.TableInvoice,
		RequisitionTable: domain.TableRequisition,
		Invoices:         processor.ShipmentProcessors(),
		Requisitions:     processor.RequisitionProcessors(),
	})

	d := New(siteID, testConfig(), Deps{
		Tx:        db,
		Repos:     db,
		Changelog: db.Changelog(),
		Buffer:    db.Buffer(),
		Cursors:   db.Cursors(),
		Statuses:  db.Statuses(),
		Registry:  registry,
		Engine:    engine,
		Pipeline:  pipeline,
		Peer:      p,
		Logger:    log,
	})
	return d, db
}

func newHub(t *testing.T) *hub.Hub {
	t.Helper()
	h, err := hub.New([]hub.Site{{ID: "site-a"}, {ID: "site-b"}}, logger.NewNop())
	require.NoError(t, err)
	return h
}

func seedCatalog(t *testing.T, db *memstore.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.Names().Upsert(ctx, name.NewName("N1", "District Store")))
	require.NoError(t, db.Items().Upsert(ctx, item.NewItem("PCM", "Paracetamol")))
	require.NoError(t, db.Items().Upsert(ctx, item.NewItem("AMX", "Amoxicillin")))
}

// flakyPeer fails the first failures calls of each kind with err.
type flakyPeer struct {
	peer.Peer
	err      error
	failures int32

	pushCalls atomic.Int32
	pullCalls atomic.Int32
}

func (p *flakyPeer) Push(ctx context.Context, records []wire.Record) (int64, error) {
	if p.pushCalls.Add(1) <= p.failures {
		return 0, p.err
	}
	return p.Peer.Push(ctx, records)
}

func (p *flakyPeer) Pull(ctx context.Context, since int64, limit int) ([]wire.Record, int64, error) {
	if p.pullCalls.Add(1) <= p.failures {
		return nil, 0, p.err
	}
	return p.Peer.Pull(ctx, since, limit)
}

func TestRunCycle_PushesAllLocalChanges(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	d, db := newDriver(t, "site-a", h.Local("site-a"))
	seedCatalog(t, db)

	run, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.PhaseDone, run.Phase)
	assert.Equal(t, 3, run.Counters.Pushed)
	assert.NotNil(t, run.FinishedAt)

	push, err := db.Cursors().Get(ctx, "site-a", cursor.Push)
	require.NoError(t, err)
	assert.Equal(t, int64(3), push)
	assert.Equal(t, int64(3), h.Ack("site-a"))
	assert.Equal(t, 3, h.Len())

	run, err = d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, run.Counters.Pushed)
	assert.Equal(t, 3, h.Len())

	latest, err := d.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, latest.RunID)
}

func TestRunCycle_PullsAndIntegratesOtherSitesChanges(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	a, dbA := newDriver(t, "site-a", h.Local("site-a"))
	b, dbB := newDriver(t, "site-b", h.Local("site-b"))
	seedCatalog(t, dbA)

	_, err := a.RunCycle(ctx)
	require.NoError(t, err)

	run, err := b.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Counters.Pulled)
	assert.Equal(t, 3, run.Counters.Integrated)
	assert.Zero(t, run.Counters.IntegrationErrors)
	assert.Zero(t, run.Counters.Pushed, "integrated rows must not be pushed back")

	pull, err := dbB.Cursors().Get(ctx, "site-b", cursor.Pull)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pull)

	_, err = a.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len(), "no record is echoed")
}

func TestRunCycle_RetriesTransportErrors(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	p := &flakyPeer{Peer: h.Local("site-a"), err: apperror.NewTransport("push", errors.New("connection reset")), failures: 2}
	d, db := newDriver(t, "site-a", p)
	seedCatalog(t, db)

	run, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.PhaseDone, run.Phase)
	assert.Equal(t, int64(3), h.Ack("site-a"))
	assert.GreaterOrEqual(t, p.pushCalls.Load(), int32(3))
}

func TestRunCycle_GivesUpAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	p := &flakyPeer{Peer: h.Local("site-a"), err: apperror.NewTransport("push", errors.New("timeout")), failures: 100}
	d, db := newDriver(t, "site-a", p)
	seedCatalog(t, db)

	run, err := d.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, apperror.IsTransport(err))
	assert.Equal(t, status.PhaseError, run.Phase)
	require.NotNil(t, run.ErrorCode)
	assert.Equal(t, apperror.CodeTransport, *run.ErrorCode)
	assert.Equal(t, int32(3), p.pushCalls.Load())

	push, err := db.Cursors().Get(ctx, "site-a", cursor.Push)
	require.NoError(t, err)
	assert.Zero(t, push, "push cursor moves only after acknowledgement")
}

func TestRunCycle_DoesNotRetryValidationErrors(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	p := &flakyPeer{Peer: h.Local("site-a"), err: apperror.NewValidation("bad request"), failures: 100}
	d, db := newDriver(t, "site-a", p)
	seedCatalog(t, db)

	_, err := d.RunCycle(ctx)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	assert.Equal(t, int32(1), p.pushCalls.Load())
}

// shortAckPeer acknowledges less than it was sent on the first push.
type shortAckPeer struct {
	peer.Peer
	calls atomic.Int32
}

func (p *shortAckPeer) Push(ctx context.Context, records []wire.Record) (int64, error) {
	ack, err := p.Peer.Push(ctx, records)
	if p.calls.Add(1) == 1 && err == nil {
		return ack - 1, nil
	}
	return ack, err
}

func TestRunCycle_PartialAckIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	p := &shortAckPeer{Peer: h.Local("site-a")}
	d, db := newDriver(t, "site-a", p)
	seedCatalog(t, db)

	_, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len(), "re-sent records are deduplicated by the hub")

	push, err := db.Cursors().Get(ctx, "site-a", cursor.Push)
	require.NoError(t, err)
	assert.Equal(t, int64(3), push)
}

func TestRunCycle_CanceledBeforeStart(t *testing.T) {
	h := newHub(t)
	d, db := newDriver(t, "site-a", h.Local("site-a"))
	seedCatalog(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := d.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, status.PhaseError, run.Phase)
	assert.Zero(t, h.Len())
}

func TestPruneAcknowledged(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	d, db := newDriver(t, "site-a", h.Local("site-a"))

	pruned, err := d.PruneAcknowledged(ctx)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	seedCatalog(t, db)
	_, err = d.RunCycle(ctx)
	require.NoError(t, err)

	pruned, err = d.PruneAcknowledged(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	latest, err := db.Changelog().LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)
}

// gatePeer blocks the first pull until release is closed.
type gatePeer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *gatePeer) Push(context.Context, []wire.Record) (int64, error) { return 0, nil }

func (p *gatePeer) Pull(_ context.Context, since int64, _ int) ([]wire.Record, int64, error) {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return nil, since, nil
}

func TestScheduler_CoalescesTriggers(t *testing.T) {
	p := &gatePeer{entered: make(chan struct{}), release: make(chan struct{})}
	d, _ := newDriver(t, "site-a", p)
	s := NewScheduler(time.Hour, logger.NewNop(), d)
	assert.Equal(t, []string{"site-a"}, s.Sites())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-p.entered
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Trigger("site-a"))
	}
	require.NoError(t, s.Trigger(""))
	close(p.release)

	require.Eventually(t, func() bool { return s.Runs("site-a") == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, s.Runs("site-a"))

	last, ok := s.LastStatus("site-a")
	require.True(t, ok)
	assert.Equal(t, status.PhaseDone, last.Phase)

	statuses, err := s.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "site-a", statuses[0].SiteID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_TriggerUnknownSite(t *testing.T) {
	s := NewScheduler(time.Hour, logger.NewNop())
	assert.True(t, apperror.IsNotFound(s.Trigger("nope")))
	assert.Zero(t, s.Runs("nope"))

	_, ok := s.LastStatus("nope")
	assert.False(t, ok)
}
