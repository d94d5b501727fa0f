package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sitesync/internal/sync/changelog"
)

const changelogTable = "sync_changelog"

var changelogColumns = ExtractDBColumns[changelog.Entry]()

// ChangelogStore is the changelog.Store of a PostgreSQL site. Appends join
// the transaction of the mutation they record.
type ChangelogStore struct {
	txm *TxManager
}

var _ changelog.Store = (*ChangelogStore)(nil)

// NewChangelogStore creates a changelog store.
func NewChangelogStore(txm *TxManager) *ChangelogStore {
	return &ChangelogStore{txm: txm}
}

func (s *ChangelogStore) Append(ctx context.Context, e changelog.Entry) (int64, error) {
	q := builder().
		Insert(changelogTable).
		Columns("table_name", "record_id", "action", "store_id", "name_id", "source_site_id", "created_at").
		Values(e.TableName, e.RecordID, e.Action, e.StoreID, e.NameID, e.SourceSiteID, e.CreatedAt).
		Suffix("RETURNING cursor")

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build changelog insert: %w", err)
	}

	var cur int64
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&cur); err != nil {
		return 0, fmt.Errorf("insert changelog entry: %w", err)
	}
	return cur, nil
}

func (s *ChangelogStore) ReadSince(ctx context.Context, f changelog.Filter) ([]changelog.Entry, error) {
	sql, args, err := readSinceQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build changelog query: %w", err)
	}

	var entries []changelog.Entry
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("read changelog: %w", err)
	}
	return entries, nil
}

func readSinceQuery(f changelog.Filter) squirrel.SelectBuilder {
	q := builder().
		Select(changelogColumns...).
		From(changelogTable).
		Where(squirrel.Gt{"cursor": f.After}).
		OrderBy("cursor")
	if f.SourceSiteID != "" {
		q = q.Where(squirrel.Eq{"source_site_id": f.SourceSiteID})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (s *ChangelogStore) LatestCursor(ctx context.Context) (int64, error) {
	var cur int64
	err := s.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(cursor), 0) FROM `+changelogTable).Scan(&cur)
	if err != nil {
		return 0, fmt.Errorf("latest changelog cursor: %w", err)
	}
	return cur, nil
}

// PruneThrough keeps the newest entry so LatestCursor survives pruning.
func (s *ChangelogStore) PruneThrough(ctx context.Context, through int64) (int64, error) {
	sql, args, err := pruneQuery(through).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build changelog prune: %w", err)
	}

	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("prune changelog: %w", err)
	}
	return tag.RowsAffected(), nil
}

func pruneQuery(through int64) squirrel.DeleteBuilder {
	return builder().
		Delete(changelogTable).
		Where(squirrel.LtOrEq{"cursor": through}).
		Where(squirrel.Expr("cursor < (SELECT MAX(cursor) FROM " + changelogTable + ")"))
}

// builder returns a squirrel builder with PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
