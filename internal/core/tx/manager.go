// Package tx provides transaction management abstractions.
// Sync components depend on Manager, never on a concrete database, so the
// same integration and processor code runs on every storage driver.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
//
// Integration commits once per record and processors once per firing, so a
// failing record rolls back only its own writes (row + changelog entry).
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
