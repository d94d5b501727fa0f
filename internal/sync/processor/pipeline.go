package processor

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/tx"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/pkg/logger"
)

// Subject is an integrated record to run processors over.
type Subject struct {
	TableName string
	RecordID  string
}

// Result is the outcome of one processor firing or failure.
type Result struct {
	Processor   string `json:"processor"`
	TableName   string `json:"tableName"`
	RecordID    string `json:"recordId"`
	Description string `json:"description,omitempty"`
	Err         error  `json:"-"`
}

// Failed reports whether the processor returned an error.
func (r Result) Failed() bool { return r.Err != nil }

// Pipeline runs processors over integrated records. Every firing commits
// in its own transaction; the record is reloaded before each processor so
// later processors observe earlier mutations.
type Pipeline struct {
	siteID       string
	repos        domain.Repositories
	txm          tx.Manager
	invoices     []Processor[*invoice.Invoice]
	requisitions []Processor[*requisition.Requisition]
	invoiceTable string
	reqTable     string
	log          *logger.Logger
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	SiteID string
	Repos  domain.Repositories
	Tx     tx.Manager
	Logger *logger.Logger

	// InvoiceTable and RequisitionTable are the wire tables whose
	// records are routed to the invoice and requisition processors
	InvoiceTable     string
	RequisitionTable string

	Invoices     []Processor[*invoice.Invoice]
	Requisitions []Processor[*requisition.Requisition]
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		siteID:       cfg.SiteID,
		repos:        cfg.Repos,
		txm:          cfg.Tx,
		invoices:     cfg.Invoices,
		requisitions: cfg.Requisitions,
		invoiceTable: cfg.InvoiceTable,
		reqTable:     cfg.RequisitionTable,
		log:          log.WithComponent("processor"),
	}
}

// Run applies every processor to every subject and returns fired and failed
// results in order. Errors are isolated per (record, processor).
func (p *Pipeline) Run(ctx context.Context, subjects []Subject) []Result {
	var results []Result
	for _, s := range subjects {
		switch s.TableName {
		case p.invoiceTable:
			for _, proc := range p.invoices {
				if r, ok := runOne(ctx, p, proc, s, p.loadInvoice); ok {
					results = append(results, r)
				}
			}
		case p.reqTable:
			for _, proc := range p.requisitions {
				if r, ok := runOne(ctx, p, proc, s, p.loadRequisition); ok {
					results = append(results, r)
				}
			}
		}
	}
	return results
}

type loader[T any] func(ctx context.Context, recordID string) (*Input[T], error)

func runOne[T any](ctx context.Context, p *Pipeline, proc Processor[T], s Subject, load loader[T]) (Result, bool) {
	result := Result{Processor: proc.Name(), TableName: s.TableName, RecordID: s.RecordID}

	err := p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		in, err := load(ctx, s.RecordID)
		if err != nil {
			return err
		}
		if in == nil {
			return nil
		}
		desc, err := proc.TryProcess(ctx, p.repos, *in)
		if err != nil {
			return err
		}
		result.Description = desc
		return nil
	})
	if err != nil {
		result.Err = apperror.NewProcessor(proc.Name(), s.RecordID, err)
		p.log.WithContext(ctx).Warnw("processor failed",
			"processor", proc.Name(),
			"record_id", s.RecordID,
			"error", err,
		)
		return result, true
	}
	if result.Description == "" {
		return result, false
	}

	p.log.WithContext(ctx).Infow("processor fired",
		"processor", proc.Name(),
		"record_id", s.RecordID,
		"description", result.Description,
	)
	return result, true
}

func (p *Pipeline) loadInvoice(ctx context.Context, recordID string) (*Input[*invoice.Invoice], error) {
	inv, err := domain.Optional(p.repos.Invoices().GetByID(ctx, recordID))
	if err != nil || inv == nil {
		return nil, err
	}

	in := &Input[*invoice.Invoice]{Record: inv, SiteID: p.siteID}
	if inv.IsLinked() {
		in.Linked, err = domain.Optional(p.repos.Invoices().GetByID(ctx, *inv.LinkedInvoiceID))
	} else {
		in.Linked, err = domain.Optional(p.repos.Invoices().FindByLinkedID(ctx, inv.ID))
	}
	if err != nil {
		return nil, fmt.Errorf("resolve linked invoice: %w", err)
	}

	if err := p.flags(ctx, inv.StoreID, inv.NameID, in); err != nil {
		return nil, err
	}
	if in.Linked != nil {
		if in.LinkedIsActive, err = domain.StoreIsActive(ctx, p.repos, in.Linked.StoreID, p.siteID); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (p *Pipeline) loadRequisition(ctx context.Context, recordID string) (*Input[*requisition.Requisition], error) {
	req, err := domain.Optional(p.repos.Requisitions().GetByID(ctx, recordID))
	if err != nil || req == nil {
		return nil, err
	}

	in := &Input[*requisition.Requisition]{Record: req, SiteID: p.siteID}
	if req.IsLinked() {
		in.Linked, err = domain.Optional(p.repos.Requisitions().GetByID(ctx, *req.LinkedRequisitionID))
	} else {
		in.Linked, err = domain.Optional(p.repos.Requisitions().FindByLinkedID(ctx, req.ID))
	}
	if err != nil {
		return nil, fmt.Errorf("resolve linked requisition: %w", err)
	}

	if err := p.flags(ctx, req.StoreID, req.NameID, in); err != nil {
		return nil, err
	}
	if in.Linked != nil {
		if in.LinkedIsActive, err = domain.StoreIsActive(ctx, p.repos, in.Linked.StoreID, p.siteID); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// activeFlags is implemented by *Input[T] for every T.
type activeFlags interface {
	setActive(record, otherParty bool)
}

func (in *Input[T]) setActive(record, otherParty bool) {
	in.RecordIsActive = record
	in.OtherPartyIsActive = otherParty
}

func (p *Pipeline) flags(ctx context.Context, storeID, nameID string, in activeFlags) error {
	recordActive, err := domain.StoreIsActive(ctx, p.repos, storeID, p.siteID)
	if err != nil {
		return err
	}
	otherActive, err := domain.NameIsActive(ctx, p.repos, nameID, p.siteID)
	if err != nil {
		return err
	}
	in.setActive(recordActive, otherActive)
	return nil
}

// now is the clock used for status datetimes.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
