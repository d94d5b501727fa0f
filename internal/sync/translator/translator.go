// Package translator maps wire records to rows and back. Each synced table
// has one Translator; the Registry dispatches records by table name and the
// resolver orders tables so references integrate after their targets.
package translator

import (
	"context"

	"sitesync/internal/domain"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/wire"
)

// Translator converts one wire table.
type Translator interface {
	// TableName is the wire table handled by the translator.
	TableName() string

	// PullDependencies lists wire tables whose rows must be integrated
	// before rows of this table.
	PullDependencies() []string

	// TryTranslatePull converts rec into a storage mutation. conn gives
	// read access to rows integrated earlier so references can be resolved.
	// Malformed payloads return a TRANSLATION_ERROR.
	TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (PullResult, error)

	// TranslatePush converts a changelog entry into a wire record. It
	// returns nil when the row no longer exists; the delete entry that
	// follows carries the change instead.
	TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error)
}

// PullKind is the variant of a PullResult.
type PullKind uint8

const (
	// PullNotMine means the translator does not handle this payload
	PullNotMine PullKind = iota
	PullUpsert
	PullDelete
	PullIgnore
)

func (k PullKind) String() string {
	switch k {
	case PullNotMine:
		return "not_mine"
	case PullUpsert:
		return "upsert"
	case PullDelete:
		return "delete"
	case PullIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// PullResult is the outcome of translating a pulled record.
type PullResult struct {
	Kind PullKind
	// Row is the translated row of an upsert
	Row any
	// RecordID is the id of the deleted row
	RecordID string
	// Reason explains NotMine and Ignore results
	Reason string

	apply func(ctx context.Context, conn domain.Repositories) error
}

// UpsertOf builds an upsert result applied with fn.
func UpsertOf[T any](row T, fn func(ctx context.Context, conn domain.Repositories, row T) error) PullResult {
	return PullResult{
		Kind: PullUpsert,
		Row:  row,
		apply: func(ctx context.Context, conn domain.Repositories) error {
			return fn(ctx, conn, row)
		},
	}
}

// DeleteOf builds a delete result applied with fn.
func DeleteOf(recordID string, fn func(ctx context.Context, conn domain.Repositories, id string) error) PullResult {
	return PullResult{
		Kind:     PullDelete,
		RecordID: recordID,
		apply: func(ctx context.Context, conn domain.Repositories) error {
			return fn(ctx, conn, recordID)
		},
	}
}

// IgnoreOf builds an ignore result.
func IgnoreOf(reason string) PullResult {
	return PullResult{Kind: PullIgnore, Reason: reason}
}

// NotMine builds a not-mine result.
func NotMine(reason string) PullResult {
	return PullResult{Kind: PullNotMine, Reason: reason}
}

// Apply writes the mutation through conn. NotMine and Ignore results do
// nothing.
func (r PullResult) Apply(ctx context.Context, conn domain.Repositories) error {
	if r.apply == nil {
		return nil
	}
	return r.apply(ctx, conn)
}

// PushRecord builds the envelope of a pushed row.
func PushRecord(entry changelog.Entry, data []byte) *wire.Record {
	return &wire.Record{
		TableName:    entry.TableName,
		RecordID:     entry.RecordID,
		Action:       entry.Action,
		Data:         data,
		Cursor:       entry.Cursor,
		StoreID:      changelog.Deref(entry.StoreID),
		NameID:       changelog.Deref(entry.NameID),
		SourceSiteID: entry.SourceSiteID,
	}
}
