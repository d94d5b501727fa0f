// Package buffer stages records pulled from the central server until they
// are integrated. Staged records are kept after integration as an audit
// trail of what arrived and what happened to it.
package buffer

import (
	"context"
	"encoding/json"
	"time"

	"sitesync/internal/sync/wire"
)

// Outcome is the result stored for an integrated record.
type Outcome string

const (
	OutcomeUpserted Outcome = "upserted"
	OutcomeDeleted  Outcome = "deleted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeIgnored  Outcome = "ignored"
)

// Record is a staged wire record with its integration state.
type Record struct {
	SiteID       string          `db:"site_id" json:"siteId"`
	RecordID     string          `db:"record_id" json:"recordId"`
	TableName    string          `db:"table_name" json:"tableName"`
	Action       wire.Action     `db:"action" json:"action"`
	Data         json.RawMessage `db:"data" json:"data,omitempty"`
	StoreID      *string         `db:"store_id" json:"storeId,omitempty"`
	NameID       *string         `db:"name_id" json:"nameId,omitempty"`
	SourceSiteID string          `db:"source_site_id" json:"sourceSiteId"`
	RemoteCursor int64           `db:"remote_cursor" json:"remoteCursor"`

	// ReceiptSeq orders records by arrival; re-staging moves a record to
	// the end
	ReceiptSeq int64     `db:"receipt_seq" json:"receiptSeq"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`

	IntegrationDatetime *time.Time `db:"integration_datetime" json:"integrationDatetime,omitempty"`
	IntegrationOutcome  *Outcome   `db:"integration_outcome" json:"integrationOutcome,omitempty"`
	IntegrationDetail   *string    `db:"integration_detail" json:"integrationDetail,omitempty"`
	IntegrationError    *string    `db:"integration_error" json:"integrationError,omitempty"`
}

// IsIntegrated reports whether an outcome has been recorded.
func (r *Record) IsIntegrated() bool {
	return r.IntegrationDatetime != nil
}

// Wire converts the staged record back to its wire form.
func (r *Record) Wire() wire.Record {
	return wire.Record{
		TableName:    r.TableName,
		RecordID:     r.RecordID,
		Action:       r.Action,
		Data:         r.Data,
		Cursor:       r.RemoteCursor,
		StoreID:      deref(r.StoreID),
		NameID:       deref(r.NameID),
		SourceSiteID: r.SourceSiteID,
	}
}

// FromWire builds a staged record. ReceiptSeq is assigned by the store.
func FromWire(siteID string, rec wire.Record, receivedAt time.Time) Record {
	return Record{
		SiteID:       siteID,
		RecordID:     rec.RecordID,
		TableName:    rec.TableName,
		Action:       rec.Action,
		Data:         rec.Data,
		StoreID:      optional(rec.StoreID),
		NameID:       optional(rec.NameID),
		SourceSiteID: rec.SourceSiteID,
		RemoteCursor: rec.Cursor,
		ReceivedAt:   receivedAt,
	}
}

// Store is the persistent sync buffer. Records are keyed by
// (site_id, record_id).
type Store interface {
	// Stage inserts the batch. A record id already present is overwritten
	// and its integration outcome reset. Returns the number staged.
	Stage(ctx context.Context, siteID string, records []wire.Record) (int, error)

	// Unintegrated returns records without an outcome. Records never
	// attempted come first in receipt order, then failed records in the
	// order they failed. Dependency order is applied by the integration
	// engine.
	Unintegrated(ctx context.Context, siteID string, limit int) ([]Record, error)

	// Get returns a staged record or NOT_FOUND.
	Get(ctx context.Context, siteID, recordID string) (*Record, error)

	// MarkIntegrated stores a successful outcome. detail is the skip or
	// ignore reason, empty otherwise.
	MarkIntegrated(ctx context.Context, siteID, recordID string, outcome Outcome, detail string) error

	// MarkFailed stores an error; the record stays unintegrated, moves
	// behind the other failed records and is retried on a later cycle.
	MarkFailed(ctx context.Context, siteID, recordID, errMsg string) error
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
