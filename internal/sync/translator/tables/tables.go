// Package tables holds the translators of every synced wire table.
package tables

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/domain"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// Wire table names.
const (
	TableName            = domain.TableName
	TableItem            = domain.TableItem
	TableStore           = domain.TableStore
	TableInvoice         = domain.TableInvoice
	TableInvoiceLine     = domain.TableInvoiceLine
	TableRequisition     = domain.TableRequisition
	TableRequisitionLine = domain.TableRequisitionLine
)

// Default returns the translators registered by every site.
func Default() []translator.Translator {
	return []translator.Translator{
		NameTranslator{},
		ItemTranslator{},
		StoreTranslator{},
		InvoiceTranslator{},
		InvoiceLineTranslator{},
		RequisitionTranslator{},
		RequisitionLineTranslator{},
	}
}

// NewDefaultRegistry builds and validates the registry of Default.
func NewDefaultRegistry() (*translator.Registry, error) {
	return translator.NewRegistry(Default()...)
}

// pullRecord decodes an upsert payload of type L, converts it with fromWire
// and binds the result to upsert. Deletes are bound to del without decoding.
func pullRecord[L any, R any](
	rec wire.Record,
	fromWire func(L) (R, error),
	upsert func(ctx context.Context, conn domain.Repositories, row R) error,
	del func(ctx context.Context, conn domain.Repositories, id string) error,
) (translator.PullResult, error) {
	if rec.Action == wire.ActionDelete {
		return translator.DeleteOf(rec.RecordID, del), nil
	}

	var legacy L
	if err := wire.Decode(rec, &legacy); err != nil {
		return translator.PullResult{}, err
	}
	row, err := fromWire(legacy)
	if err != nil {
		if apperror.IsTranslation(err) {
			return translator.PullResult{}, err
		}
		return translator.PullResult{}, apperror.NewTranslation(rec.TableName, rec.RecordID, err.Error()).WithCause(err)
	}
	return translator.UpsertOf(row, upsert), nil
}

// pushRecord loads the row of an upsert entry and encodes it with toWire.
func pushRecord[R any, L any](
	ctx context.Context,
	entry changelog.Entry,
	get func(ctx context.Context, id string) (*R, error),
	toWire func(*R) L,
) (*wire.Record, error) {
	if entry.Action == wire.ActionDelete {
		return translator.PushRecord(entry, nil), nil
	}

	row, err := domain.Optional(get(ctx, entry.RecordID))
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", entry.TableName, entry.RecordID, err)
	}
	if row == nil {
		return nil, nil
	}

	data, err := wire.Encode(toWire(row))
	if err != nil {
		return nil, err
	}
	return translator.PushRecord(entry, data), nil
}

// checkID rejects payloads whose id differs from the envelope.
func checkID(rec wire.Record, payloadID string) error {
	if payloadID != rec.RecordID {
		return apperror.NewTranslation(rec.TableName, rec.RecordID, "payload id does not match record id").
			WithDetail("payload_id", payloadID)
	}
	return nil
}

// requireRow returns a translation error when a referenced row is missing.
func requireRow[T any](rec wire.Record, entity, refID string, row *T, err error) error {
	if err == nil && row != nil {
		return nil
	}
	if err != nil && !apperror.IsNotFound(err) {
		return err
	}
	return apperror.NewTranslation(rec.TableName, rec.RecordID, fmt.Sprintf("referenced %s not found", entity)).
		WithDetail("reference", refID)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
