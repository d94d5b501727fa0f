// Package document_repo provides the PostgreSQL repositories of shipments
// and requisitions. Document changes are routed by the store and the other
// party of the header; lines inherit the routing of their header.
package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/storage/postgres"
	"sitesync/internal/sync/changelog"
)

// parentRouting loads the header of a line and returns its routing keys.
func parentRouting[T any](ctx context.Context, parents *postgres.RowRepo[T], parentID string, keys func(*T) changelog.Routing) (changelog.Routing, error) {
	p, err := parents.GetByID(ctx, parentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return changelog.Routing{}, apperror.NewConflict("line references a missing document").
				WithDetail("document_id", parentID)
		}
		return changelog.Routing{}, err
	}
	return keys(p), nil
}

// linkedQuery selects the document linked to linkedID.
func linkedQuery[T any](repo *postgres.RowRepo[T], column, linkedID string) squirrel.SelectBuilder {
	return repo.Select().Where(squirrel.Eq{column: linkedID}).OrderBy("id")
}

// linesQuery selects the lines of a document ordered by id.
func linesQuery[T any](repo *postgres.RowRepo[T], column, parentID string) squirrel.SelectBuilder {
	return repo.Select().Where(squirrel.Eq{column: parentID}).OrderBy("id")
}
