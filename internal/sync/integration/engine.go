// Package integration applies staged records to the site's tables.
//
// Records are integrated table by table in dependency order and, within a
// table, in receipt order. Each record commits in its own transaction
// together with its buffer outcome, so a failing record rolls back only
// itself and never blocks unrelated records.
package integration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/entity"
	"sitesync/internal/core/tx"
	"sitesync/internal/domain"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/pkg/logger"
)

// OutcomeKind is the result of integrating one record.
type OutcomeKind uint8

const (
	Upserted OutcomeKind = iota
	Deleted
	Skipped
	Ignored
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Upserted:
		return "upserted"
	case Deleted:
		return "deleted"
	case Skipped:
		return "skipped"
	case Ignored:
		return "ignored"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the reported result of one record.
type Outcome struct {
	Kind      OutcomeKind
	TableName string
	RecordID  string
	// Row is the applied row of an upsert
	Row any
	// Reason explains Skipped and Ignored outcomes
	Reason string
	Err    error
}

// Report summarizes a batch.
type Report struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes of kind k.
func (r *Report) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Integrated returns the number of records that got a final outcome.
func (r *Report) Integrated() int {
	return len(r.Outcomes) - r.Count(Failed)
}

// Upserts returns the upserted outcomes in integration order.
func (r *Report) Upserts() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == Upserted {
			out = append(out, o)
		}
	}
	return out
}

// Engine integrates staged records.
type Engine struct {
	siteID   string
	registry *translator.Registry
	buffer   buffer.Store
	repos    domain.Repositories
	txm      tx.Manager
	now      func() time.Time
	log      *logger.Logger
}

// Config holds the collaborators of an Engine.
type Config struct {
	SiteID   string
	Registry *translator.Registry
	Buffer   buffer.Store
	Repos    domain.Repositories
	Tx       tx.Manager
	Logger   *logger.Logger
}

// NewEngine creates an integration engine for one site.
func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		siteID:   cfg.SiteID,
		registry: cfg.Registry,
		buffer:   cfg.Buffer,
		repos:    cfg.Repos,
		txm:      cfg.Tx,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.WithComponent("integration"),
	}
}

// IntegratePending integrates up to limit unintegrated records of the site.
func (e *Engine) IntegratePending(ctx context.Context, limit int) (*Report, error) {
	records, err := e.buffer.Unintegrated(ctx, e.siteID, limit)
	if err != nil {
		return nil, apperror.NewDatabase("read unintegrated records", err)
	}
	return e.IntegrateBatch(ctx, records), nil
}

// Order sorts records by the pull order of their tables, keeping receipt
// order inside a table.
func (e *Engine) Order(records []buffer.Record) []buffer.Record {
	present := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.TableName] {
			seen[r.TableName] = true
			present = append(present, r.TableName)
		}
	}

	position := make(map[string]int, len(present))
	for i, table := range e.registry.ResolvePullOrder(present) {
		position[table] = i
	}

	ordered := append([]buffer.Record(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := position[ordered[i].TableName], position[ordered[j].TableName]
		if pi != pj {
			return pi < pj
		}
		return ordered[i].ReceiptSeq < ordered[j].ReceiptSeq
	})
	return ordered
}

// IntegrateBatch integrates records in dependency order. Per-record
// failures are recorded in the buffer and in the report; they never abort
// the batch.
func (e *Engine) IntegrateBatch(ctx context.Context, records []buffer.Record) *Report {
	report := &Report{Outcomes: make([]Outcome, 0, len(records))}
	for _, rec := range e.Order(records) {
		outcome := e.integrateOne(ctx, rec)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	e.log.WithContext(ctx).Infow("batch integrated",
		"records", len(records),
		"upserted", report.Count(Upserted),
		"deleted", report.Count(Deleted),
		"skipped", report.Count(Skipped),
		"ignored", report.Count(Ignored),
		"failed", report.Count(Failed),
	)
	return report
}

func (e *Engine) integrateOne(ctx context.Context, rec buffer.Record) Outcome {
	outcome := Outcome{TableName: rec.TableName, RecordID: rec.RecordID}

	// Rows written by integration are attributed to the site the change
	// came from so this site never pushes them back.
	source := rec.SourceSiteID
	if source == "" {
		source = "remote"
	}
	txCtx := changelog.WithSourceSite(ctx, source)

	err := e.txm.RunInTransaction(txCtx, func(ctx context.Context) error {
		result, err := e.translate(ctx, rec)
		if err != nil {
			return err
		}

		switch result.Kind {
		case translator.PullUpsert:
			if v, ok := result.Row.(entity.Validatable); ok {
				if err := v.Validate(ctx); err != nil {
					return apperror.NewTranslation(rec.TableName, rec.RecordID, "translated row is invalid").WithCause(err)
				}
			}
			if err := result.Apply(ctx, e.repos); err != nil {
				return apperror.NewIntegration(rec.TableName, rec.RecordID, err)
			}
			outcome.Kind = Upserted
			outcome.Row = result.Row
		case translator.PullDelete:
			if err := result.Apply(ctx, e.repos); err != nil {
				return apperror.NewIntegration(rec.TableName, rec.RecordID, err)
			}
			outcome.Kind = Deleted
		case translator.PullIgnore:
			outcome.Kind = Skipped
			outcome.Reason = result.Reason
		case translator.PullNotMine:
			outcome.Kind = Ignored
			outcome.Reason = result.Reason
		default:
			return fmt.Errorf("unknown pull result kind %d", result.Kind)
		}

		return e.buffer.MarkIntegrated(ctx, e.siteID, rec.RecordID, bufferOutcome(outcome.Kind), outcome.Reason)
	})
	if err == nil {
		return outcome
	}

	outcome = Outcome{Kind: Failed, TableName: rec.TableName, RecordID: rec.RecordID, Err: err}
	e.log.WithContext(ctx).Warnw("record integration failed",
		"table", rec.TableName,
		"record_id", rec.RecordID,
		"code", apperror.CodeOf(err),
		"error", err,
	)
	if markErr := e.buffer.MarkFailed(ctx, e.siteID, rec.RecordID, err.Error()); markErr != nil {
		e.log.WithContext(ctx).Errorw("failed to record integration error",
			"record_id", rec.RecordID,
			"error", markErr,
		)
	}
	return outcome
}

// translate dispatches rec to its translator. Unknown tables are ignored.
func (e *Engine) translate(ctx context.Context, rec buffer.Record) (translator.PullResult, error) {
	t, err := e.registry.Lookup(rec.TableName)
	if err != nil {
		if apperror.IsNotFound(err) {
			return translator.NotMine(fmt.Sprintf("no translator for table %q", rec.TableName)), nil
		}
		return translator.PullResult{}, err
	}

	w := rec.Wire()
	if err := w.Validate(); err != nil {
		return translator.PullResult{}, apperror.NewTranslation(rec.TableName, rec.RecordID, err.Error())
	}
	return t.TryTranslatePull(ctx, e.repos, w)
}

func bufferOutcome(k OutcomeKind) buffer.Outcome {
	switch k {
	case Upserted:
		return buffer.OutcomeUpserted
	case Deleted:
		return buffer.OutcomeDeleted
	case Skipped:
		return buffer.OutcomeSkipped
	default:
		return buffer.OutcomeIgnored
	}
}
