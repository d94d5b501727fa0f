package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"sitesync/internal/sync/cursor"
)

const cursorTable = "sync_cursor"

// CursorStore is the cursor.Store of a PostgreSQL site.
type CursorStore struct {
	txm *TxManager
}

var _ cursor.Store = (*CursorStore)(nil)

// NewCursorStore creates a cursor store.
func NewCursorStore(txm *TxManager) *CursorStore {
	return &CursorStore{txm: txm}
}

func (s *CursorStore) Get(ctx context.Context, siteID string, dir cursor.Direction) (int64, error) {
	return s.get(ctx, siteID, dir, false)
}

func (s *CursorStore) get(ctx context.Context, siteID string, dir cursor.Direction, forUpdate bool) (int64, error) {
	q := builder().
		Select("value").
		From(cursorTable).
		Where(squirrel.Eq{"site_id": siteID, "direction": string(dir)})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cursor query: %w", err)
	}

	var v int64
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get %s cursor: %w", dir, err)
	}
	return v, nil
}

// Advance locks the row, checks the move and upserts the new value.
func (s *CursorStore) Advance(ctx context.Context, siteID string, dir cursor.Direction, value int64) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.get(ctx, siteID, dir, true)
		if err != nil {
			return err
		}
		if err := cursor.CheckAdvance(siteID, dir, current, value); err != nil {
			return err
		}

		sql, args, err := builder().
			Insert(cursorTable).
			Columns("site_id", "direction", "value", "updated_at").
			Values(siteID, string(dir), value, time.Now().UTC()).
			Suffix("ON CONFLICT (site_id, direction) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build cursor upsert: %w", err)
		}

		if _, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("advance %s cursor: %w", dir, err)
		}
		return nil
	})
}

func (s *CursorStore) List(ctx context.Context) ([]cursor.Cursor, error) {
	sql, args, err := builder().
		Select(ExtractDBColumns[cursor.Cursor]()...).
		From(cursorTable).
		OrderBy("site_id", "direction").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cursor list: %w", err)
	}

	var out []cursor.Cursor
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	return out, nil
}
