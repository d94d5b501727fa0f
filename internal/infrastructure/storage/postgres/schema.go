package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"sitesync/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables of the site when they do not exist yet.
// The schema is idempotent so it is applied on every start.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}
