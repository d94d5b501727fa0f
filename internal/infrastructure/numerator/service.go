// Package numerator provides PostgreSQL implementation of document auto-numbering.
// This is the infrastructure layer - it implements core/numerator.Generator interface.
package numerator

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	corenumerator "sitesync/internal/core/numerator"
	"sitesync/internal/infrastructure/storage/postgres"
)

// TableName is the table holding the last number per store and kind.
const TableName = "sync_number"

// Service provides document numbering using PostgreSQL.
type Service struct {
	txm *postgres.TxManager
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator that runs in the transaction of its caller.
func New(txm *postgres.TxManager) *Service {
	return &Service{txm: txm}
}

// Next fetches the next number directly from DB using UPSERT + RETURNING.
// The row stays locked until the surrounding transaction ends, so numbers
// of one store never repeat.
func (s *Service) Next(ctx context.Context, kind corenumerator.Kind, storeID string) (int64, error) {
	if err := corenumerator.CheckKey(kind, storeID); err != nil {
		return 0, err
	}
	query, args, err := nextQuery(kind, storeID).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build next number query: %w", err)
	}

	var num int64
	if err := s.txm.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&num); err != nil {
		return 0, fmt.Errorf("next %s number of store %s: %w", kind, storeID, err)
	}
	return num, nil
}

func nextQuery(kind corenumerator.Kind, storeID string) sq.InsertBuilder {
	return sq.Insert(TableName).
		Columns("store_id", "kind", "value").
		Values(storeID, string(kind), 1).
		Suffix("ON CONFLICT (store_id, kind) DO UPDATE SET value = " + TableName + ".value + 1 RETURNING value").
		PlaceholderFormat(sq.Dollar)
}
