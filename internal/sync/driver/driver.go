// Package driver runs sync cycles: push local changes, pull remote changes,
// integrate them and derive follow-up mutations.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sitesync/internal/core/apperror"
	appctx "sitesync/internal/core/context"
	"sitesync/internal/core/id"
	"sitesync/internal/core/tx"
	"sitesync/internal/domain"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/integration"
	"sitesync/internal/sync/peer"
	"sitesync/internal/sync/processor"
	"sitesync/internal/sync/status"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
	"sitesync/pkg/logger"
)

var tracer = otel.Tracer("sitesync/driver")

// Deps holds the collaborators of a Driver.
type Deps struct {
	Tx        tx.Manager
	Repos     domain.Repositories
	Changelog changelog.Store
	Buffer    buffer.Store
	Cursors   cursor.Store
	Statuses  status.Store
	Registry  *translator.Registry
	Engine    *integration.Engine
	Pipeline  *processor.Pipeline
	Peer      peer.Peer
	Logger    *logger.Logger
}

// Driver runs sync cycles for one site. Cycles of the same driver never
// overlap.
type Driver struct {
	siteID string
	cfg    Config
	deps   Deps
	log    *logger.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates a driver for siteID.
func New(siteID string, cfg Config, deps Deps) *Driver {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Driver{
		siteID: siteID,
		cfg:    cfg.withDefaults(),
		deps:   deps,
		log:    log.WithComponent("driver"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SiteID returns the site the driver syncs.
func (d *Driver) SiteID() string { return d.siteID }

// LatestStatus returns the last persisted status of the site.
func (d *Driver) LatestStatus(ctx context.Context) (*status.RunStatus, error) {
	return d.deps.Statuses.Latest(ctx, d.siteID)
}

// cycle is the mutable state of one run.
type cycle struct {
	run    *status.RunStatus
	report *integration.Report
	// derived holds the processor results of the run
	derived []processor.Result
}

type step struct {
	phase status.Phase
	fn    func(ctx context.Context, c *cycle) error
}

// RunCycle runs push, pull, integrate and derive in order.
//
// Once a phase has started it runs to completion even if ctx is canceled;
// cancellation is honored between phases. The returned status is final
// (Done or Error); the error is non-nil for Error.
func (d *Driver) RunCycle(ctx context.Context) (*status.RunStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	run := status.New(id.NewString(), d.siteID, d.now())
	ctx = appctx.WithRun(ctx, &appctx.RunScope{SiteID: d.siteID, RunID: run.RunID})
	work := context.WithoutCancel(ctx)
	c := &cycle{run: run}

	d.save(work, run)
	d.log.WithContext(ctx).Infow("sync cycle started")

	steps := []step{
		{status.PhasePushing, d.push},
		{status.PhasePulling, d.pull},
		{status.PhaseIntegrating, d.integrate},
		{status.PhaseProcessingDerived, d.derive},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return d.fail(work, run, apperror.NewCanceled("sync cycle interrupted before "+s.phase.String(), err))
		}
		if err := run.Transition(s.phase, d.now()); err != nil {
			return d.fail(work, run, apperror.NewInternal(err))
		}
		d.save(work, run)

		if err := d.runPhase(work, s, c); err != nil {
			return d.fail(work, run, err)
		}
	}

	if err := run.Transition(status.PhaseDone, d.now()); err != nil {
		return d.fail(work, run, apperror.NewInternal(err))
	}
	d.save(work, run)
	d.log.WithContext(ctx).Infow("sync cycle finished",
		"pushed", run.Counters.Pushed,
		"pulled", run.Counters.Pulled,
		"integrated", run.Counters.Integrated,
		"integration_errors", run.Counters.IntegrationErrors,
		"derived", run.Counters.Derived,
		"processor_errors", run.Counters.ProcessorErrors,
	)
	return run.Clone(), nil
}

func (d *Driver) runPhase(ctx context.Context, s step, c *cycle) error {
	ctx = appctx.WithPhase(ctx, s.phase.String())
	ctx, span := tracer.Start(ctx, "sync."+s.phase.String(),
		trace.WithAttributes(
			attribute.String("sync.site_id", d.siteID),
			attribute.String("sync.run_id", c.run.RunID),
		))
	defer span.End()

	err := s.fn(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *Driver) fail(ctx context.Context, run *status.RunStatus, err error) (*status.RunStatus, error) {
	run.Fail(apperror.CodeOf(err), err, d.now())
	d.save(ctx, run)
	d.log.WithContext(ctx).Errorw("sync cycle failed",
		"phase", run.Phase.String(),
		"code", apperror.CodeOf(err),
		"error", err,
	)
	return run.Clone(), err
}

func (d *Driver) save(ctx context.Context, run *status.RunStatus) {
	if err := d.deps.Statuses.Save(ctx, run.Clone()); err != nil {
		d.log.WithContext(ctx).Warnw("failed to persist run status", "error", err)
	}
}

// push sends changelog entries made by this site page by page. The push
// cursor moves to the highest cursor of a page only after the server has
// acknowledged it.
func (d *Driver) push(ctx context.Context, c *cycle) error {
	for {
		after, err := d.deps.Cursors.Get(ctx, d.siteID, cursor.Push)
		if err != nil {
			return apperror.NewDatabase("read push cursor", err)
		}
		entries, err := d.deps.Changelog.ReadSince(ctx, changelog.Filter{
			SourceSiteID: d.siteID,
			After:        after,
			Limit:        d.cfg.BatchSize,
		})
		if err != nil {
			return apperror.NewDatabase("read changelog", err)
		}
		if len(entries) == 0 {
			return nil
		}

		records, err := d.translatePush(ctx, entries)
		if err != nil {
			return err
		}

		if len(records) > 0 {
			maxRecord := records[len(records)-1].Cursor
			_, err := retry(ctx, d.cfg, func() (int64, error) {
				ack, err := d.deps.Peer.Push(ctx, records)
				if err != nil {
					return 0, err
				}
				if ack < maxRecord {
					return ack, apperror.NewTransport("push", fmt.Errorf("server acknowledged cursor %d, sent up to %d", ack, maxRecord))
				}
				return ack, nil
			})
			if err != nil {
				return err
			}
		}

		if err := d.deps.Cursors.Advance(ctx, d.siteID, cursor.Push, changelog.MaxCursor(entries)); err != nil {
			return apperror.NewDatabase("advance push cursor", err)
		}
		c.run.Counters.Pushed += len(records)
		d.save(ctx, c.run)

		if len(entries) < d.cfg.BatchSize {
			return nil
		}
	}
}

// translatePush converts entries in cursor order. Entries of tables without
// a translator and rows that fail translation are skipped with a warning so
// a single bad row cannot stall the push stream.
func (d *Driver) translatePush(ctx context.Context, entries []changelog.Entry) ([]wire.Record, error) {
	records := make([]wire.Record, 0, len(entries))
	for _, e := range entries {
		t, err := d.deps.Registry.Lookup(e.TableName)
		if err != nil {
			d.log.WithContext(ctx).Warnw("skipping changelog entry without translator",
				"table", e.TableName, "record_id", e.RecordID, "cursor", e.Cursor)
			continue
		}
		rec, err := t.TranslatePush(ctx, d.deps.Repos, e)
		if err != nil {
			if apperror.IsTranslation(err) {
				d.log.WithContext(ctx).Warnw("skipping untranslatable row",
					"table", e.TableName, "record_id", e.RecordID, "error", err)
				continue
			}
			return nil, apperror.NewDatabase("translate push", err)
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

type page struct {
	records []wire.Record
	next    int64
}

// pull fetches pages until the server stream is drained. Each page is
// staged and the pull cursor advanced in one transaction.
func (d *Driver) pull(ctx context.Context, c *cycle) error {
	for {
		since, err := d.deps.Cursors.Get(ctx, d.siteID, cursor.Pull)
		if err != nil {
			return apperror.NewDatabase("read pull cursor", err)
		}

		p, err := retry(ctx, d.cfg, func() (page, error) {
			recs, next, err := d.deps.Peer.Pull(ctx, since, d.cfg.BatchSize)
			return page{records: recs, next: next}, err
		})
		if err != nil {
			return err
		}

		staged := d.stageable(ctx, p.records)
		err = d.deps.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
			if len(staged) > 0 {
				if _, err := d.deps.Buffer.Stage(ctx, d.siteID, staged); err != nil {
					return apperror.NewDatabase("stage pulled records", err)
				}
			}
			if p.next > since {
				if err := d.deps.Cursors.Advance(ctx, d.siteID, cursor.Pull, p.next); err != nil {
					return apperror.NewDatabase("advance pull cursor", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		c.run.Counters.Pulled += len(staged)
		d.save(ctx, c.run)

		if len(p.records) < d.cfg.BatchSize || p.next <= since {
			return nil
		}
	}
}

// stageable drops records whose envelope cannot be keyed. Payload problems
// are left for integration to report.
func (d *Driver) stageable(ctx context.Context, records []wire.Record) []wire.Record {
	out := records[:0:0]
	for _, r := range records {
		if r.TableName == "" || r.RecordID == "" {
			d.log.WithContext(ctx).Warnw("dropping pulled record without table or id",
				"table", r.TableName, "record_id", r.RecordID, "cursor", r.Cursor)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (d *Driver) integrate(ctx context.Context, c *cycle) error {
	report, err := d.deps.Engine.IntegratePending(ctx, d.cfg.IntegrationLimit)
	if err != nil {
		return err
	}
	c.report = report
	c.run.Counters.Integrated = report.Integrated()
	c.run.Counters.IntegrationErrors = report.Count(integration.Failed)
	return nil
}

func (d *Driver) derive(ctx context.Context, c *cycle) error {
	if c.report == nil {
		return nil
	}
	upserts := c.report.Upserts()
	subjects := make([]processor.Subject, 0, len(upserts))
	for _, o := range upserts {
		subjects = append(subjects, processor.Subject{TableName: o.TableName, RecordID: o.RecordID})
	}

	c.derived = d.deps.Pipeline.Run(ctx, subjects)
	for _, r := range c.derived {
		if r.Failed() {
			c.run.Counters.ProcessorErrors++
		} else {
			c.run.Counters.Derived++
		}
	}
	return nil
}

// PruneAcknowledged deletes changelog entries at or below the lowest push
// cursor of every site sharing this changelog. It waits for a running cycle.
func (d *Driver) PruneAcknowledged(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cursors, err := d.deps.Cursors.List(ctx)
	if err != nil {
		return 0, apperror.NewDatabase("list cursors", err)
	}
	through := cursor.MinPush(cursors)
	if through == 0 {
		return 0, nil
	}

	pruned, err := d.deps.Changelog.PruneThrough(ctx, through)
	if err != nil {
		return 0, apperror.NewDatabase("prune changelog", err)
	}
	d.log.WithContext(ctx).Infow("changelog pruned", "through", through, "entries", pruned)
	return pruned, nil
}

// IsCanceled reports whether err stopped a cycle between phases.
func IsCanceled(err error) bool {
	return apperror.CodeOf(err) == apperror.CodeCanceled || errors.Is(err, context.Canceled)
}
