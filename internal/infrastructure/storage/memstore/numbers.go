package memstore

import (
	"context"

	"sitesync/internal/core/numerator"
)

// Numbers implements domain.Repositories.
func (db *DB) Numbers() numerator.Generator { return numberGen{db} }

type numberGen struct{ db *DB }

func (g numberGen) Next(ctx context.Context, kind numerator.Kind, storeID string) (int64, error) {
	if err := numerator.CheckKey(kind, storeID); err != nil {
		return 0, err
	}
	var next int64
	err := g.db.do(ctx, func(_ context.Context, st *txState) error {
		k := numberKey{store: storeID, kind: kind}
		next = g.db.numbers[k] + 1
		put(st, g.db.numbers, k, next)
		return nil
	})
	return next, err
}
