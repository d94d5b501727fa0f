package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/wire"
)

// pgForeignKeyViolation is the SQLSTATE of a foreign key violation.
const pgForeignKeyViolation = "23503"

// RowRepo provides the storage operations shared by synced tables. Every
// write appends a changelog entry in the same transaction. Embed it in the
// table repositories.
type RowRepo[T any] struct {
	txm       *TxManager
	recorder  *changelog.Recorder
	table     string
	wireTable string
	columns   []string
}

// NewRowRepo creates a repository of table. Changes are recorded under
// wireTable.
func NewRowRepo[T any](txm *TxManager, recorder *changelog.Recorder, table, wireTable string) *RowRepo[T] {
	return &RowRepo[T]{
		txm:       txm,
		recorder:  recorder,
		table:     table,
		wireTable: wireTable,
		columns:   ExtractDBColumns[T](),
	}
}

// TxManager returns the transaction manager of the repository.
func (r *RowRepo[T]) TxManager() *TxManager { return r.txm }

// Select returns a SELECT of every column of the table.
func (r *RowRepo[T]) Select() squirrel.SelectBuilder {
	return builder().Select(r.columns...).From(r.table)
}

// GetByID returns the row or NOT_FOUND.
func (r *RowRepo[T]) GetByID(ctx context.Context, id string) (*T, error) {
	row, err := r.FindOne(ctx, r.Select().Where(squirrel.Eq{"id": id}))
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound(r.wireTable, id)
	}
	return row, err
}

// FindOne returns the first row of q or NOT_FOUND.
func (r *RowRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder) (*T, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row T
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.wireTable, "matching query")
		}
		return nil, fmt.Errorf("find %s: %w", r.table, err)
	}
	return &row, nil
}

// FindAll returns every row of q.
func (r *RowRepo[T]) FindAll(ctx context.Context, q squirrel.SelectBuilder) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*T
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, err)
	}
	return rows, nil
}

// Save inserts or replaces row and records the upsert.
func (r *RowRepo[T]) Save(ctx context.Context, id string, row *T, routing changelog.Routing) error {
	sql, args, err := upsertQuery(r.table, []string{"id"}, r.columnMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return r.mapError("upsert", id, err)
		}
		_, err := r.recorder.Record(ctx, r.wireTable, id, wire.ActionUpsert, routing)
		return err
	})
}

// Remove deletes the row and records the delete. routing is computed from
// the row before it is removed. Removing a missing row changes nothing.
func (r *RowRepo[T]) Remove(ctx context.Context, id string, routing func(ctx context.Context, row *T) (changelog.Routing, error)) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		row, err := r.FindOne(ctx, r.Select().Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"))
		if apperror.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		rt, err := routing(ctx, row)
		if err != nil {
			return err
		}

		sql, args, err := builder().Delete(r.table).Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return r.mapError("delete", id, err)
		}

		_, err = r.recorder.Record(ctx, r.wireTable, id, wire.ActionDelete, rt)
		return err
	})
}

// columnMap keeps only the columns of the table.
func (r *RowRepo[T]) columnMap(row *T) map[string]any {
	data := StructToMap(row)
	filtered := make(map[string]any, len(r.columns))
	for _, col := range r.columns {
		if v, ok := data[col]; ok {
			filtered[col] = v
		}
	}
	return filtered
}

func (r *RowRepo[T]) mapError(op, id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return apperror.NewConflict(r.wireTable+" violates a reference").
			WithDetail("id", id).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return fmt.Errorf("%s %s: %w", op, r.table, err)
}

// NoRouting is the routing of rows shared with every site.
func NoRouting[T any](context.Context, *T) (changelog.Routing, error) {
	return changelog.Routing{}, nil
}

// upsertQuery builds an INSERT that replaces every non-key column when a row
// with the same keys exists. Columns are sorted for stable SQL.
func upsertQuery(table string, keys []string, data map[string]any) squirrel.InsertBuilder {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	cols := make([]string, 0, len(data))
	for col := range data {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	values := make([]any, 0, len(cols))
	set := make([]string, 0, len(cols))
	for _, col := range cols {
		values = append(values, data[col])
		if !isKey[col] {
			set = append(set, col+" = EXCLUDED."+col)
		}
	}

	conflict := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(keys, ", "))
	if len(set) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(set, ", "))
	}

	return builder().
		Insert(table).
		Columns(cols...).
		Values(values...).
		Suffix(conflict)
}
