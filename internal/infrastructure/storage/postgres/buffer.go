package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/wire"
)

const bufferTable = "sync_buffer"

var bufferColumns = ExtractDBColumns[buffer.Record]()

// stageSuffix re-stages a record already present: it takes the new payload,
// moves to the end of the receipt order and forgets its previous outcome.
const stageSuffix = `ON CONFLICT (site_id, record_id) DO UPDATE SET
	table_name = EXCLUDED.table_name,
	action = EXCLUDED.action,
	data = EXCLUDED.data,
	store_id = EXCLUDED.store_id,
	name_id = EXCLUDED.name_id,
	source_site_id = EXCLUDED.source_site_id,
	remote_cursor = EXCLUDED.remote_cursor,
	receipt_seq = nextval('sync_buffer_receipt_seq'),
	received_at = EXCLUDED.received_at,
	integration_datetime = NULL,
	integration_outcome = NULL,
	integration_detail = NULL,
	integration_error = NULL`

// BufferStore is the buffer.Store of a PostgreSQL site.
type BufferStore struct {
	txm   *TxManager
	batch *BatchExecutor
}

var _ buffer.Store = (*BufferStore)(nil)

// NewBufferStore creates a buffer store.
func NewBufferStore(txm *TxManager) *BufferStore {
	return &BufferStore{txm: txm, batch: NewBatchExecutor(txm)}
}

// Stage upserts the page in one round trip.
func (s *BufferStore) Stage(ctx context.Context, siteID string, records []wire.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	queries := make([]BatchQuery, 0, len(records))
	for _, rec := range records {
		sql, args, err := stageQuery(buffer.FromWire(siteID, rec, now)).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build stage: %w", err)
		}
		queries = append(queries, BatchQuery{SQL: sql, Args: args})
	}

	if err := s.batch.ExecuteBatch(ctx, queries); err != nil {
		return 0, fmt.Errorf("stage %d records: %w", len(records), err)
	}
	return len(records), nil
}

func stageQuery(r buffer.Record) squirrel.InsertBuilder {
	return builder().
		Insert(bufferTable).
		Columns("site_id", "record_id", "table_name", "action", "data", "store_id", "name_id",
			"source_site_id", "remote_cursor", "received_at").
		Values(r.SiteID, r.RecordID, r.TableName, r.Action, nullableJSON(r.Data), r.StoreID, r.NameID,
			r.SourceSiteID, r.RemoteCursor, r.ReceivedAt).
		Suffix(stageSuffix)
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

func (s *BufferStore) Unintegrated(ctx context.Context, siteID string, limit int) ([]buffer.Record, error) {
	sql, args, err := unintegratedQuery(siteID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build buffer query: %w", err)
	}

	var records []buffer.Record
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("read sync buffer: %w", err)
	}
	return records, nil
}

// unintegratedQuery reads records never attempted before records that
// already failed, so a head of failures cannot fill every page.
func unintegratedQuery(siteID string, limit int) squirrel.SelectBuilder {
	q := builder().
		Select(bufferColumns...).
		From(bufferTable).
		Where(squirrel.Eq{"site_id": siteID, "integration_datetime": nil}).
		OrderBy("integration_error IS NOT NULL", "receipt_seq")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (s *BufferStore) Get(ctx context.Context, siteID, recordID string) (*buffer.Record, error) {
	sql, args, err := builder().
		Select(bufferColumns...).
		From(bufferTable).
		Where(squirrel.Eq{"site_id": siteID, "record_id": recordID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build buffer query: %w", err)
	}

	var r buffer.Record
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &r, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(bufferTable, recordID).WithDetail("site_id", siteID)
		}
		return nil, fmt.Errorf("get sync buffer record: %w", err)
	}
	return &r, nil
}

func (s *BufferStore) MarkIntegrated(ctx context.Context, siteID, recordID string, outcome buffer.Outcome, detail string) error {
	var d *string
	if detail != "" {
		d = &detail
	}
	return s.update(ctx, siteID, recordID, map[string]any{
		"integration_datetime": time.Now().UTC(),
		"integration_outcome":  string(outcome),
		"integration_detail":   d,
		"integration_error":    nil,
	})
}

// MarkFailed also moves the record behind every other failure so retries
// rotate through the failed records.
func (s *BufferStore) MarkFailed(ctx context.Context, siteID, recordID, errMsg string) error {
	return s.update(ctx, siteID, recordID, failedSet(errMsg))
}

func failedSet(errMsg string) map[string]any {
	return map[string]any{
		"integration_datetime": nil,
		"integration_outcome":  nil,
		"integration_error":    errMsg,
		"receipt_seq":          squirrel.Expr("nextval('sync_buffer_receipt_seq')"),
	}
}

func (s *BufferStore) update(ctx context.Context, siteID, recordID string, set map[string]any) error {
	sql, args, err := builder().
		Update(bufferTable).
		SetMap(set).
		Where(squirrel.Eq{"site_id": siteID, "record_id": recordID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build buffer update: %w", err)
	}

	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sync buffer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(bufferTable, recordID).WithDetail("site_id", siteID)
	}
	return nil
}
