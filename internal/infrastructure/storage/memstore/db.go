// Package memstore is an in-memory storage driver. It implements every
// storage contract of a site with the same transactional semantics as the
// postgres driver: all work runs under one lock and a failed transaction
// replays its undo log.
package memstore

import (
	"context"
	"sync"

	"sitesync/internal/core/numerator"
	"sitesync/internal/core/tx"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/status"
)

// DB holds the tables of one site.
type DB struct {
	mu sync.Mutex

	names            map[string]name.Name
	items            map[string]item.Item
	stores           map[string]store.Store
	invoices         map[string]invoice.Invoice
	invoiceLines     map[string]invoice.Line
	requisitions     map[string]requisition.Requisition
	requisitionLines map[string]requisition.Line

	entries    []changelog.Entry
	lastCursor int64

	staged     map[bufferKey]buffer.Record
	receiptSeq int64

	cursors  map[cursorKey]cursor.Cursor
	statuses map[string]status.RunStatus

	numbers map[numberKey]int64

	recorder *changelog.Recorder
}

type bufferKey struct{ site, record string }

type cursorKey struct {
	site string
	dir  cursor.Direction
}

type numberKey struct {
	store string
	kind  numerator.Kind
}

// New creates an empty database whose mutations are attributed to localSite.
func New(localSite string) *DB {
	db := &DB{
		names:            make(map[string]name.Name),
		items:            make(map[string]item.Item),
		stores:           make(map[string]store.Store),
		invoices:         make(map[string]invoice.Invoice),
		invoiceLines:     make(map[string]invoice.Line),
		requisitions:     make(map[string]requisition.Requisition),
		requisitionLines: make(map[string]requisition.Line),
		staged:           make(map[bufferKey]buffer.Record),
		cursors:          make(map[cursorKey]cursor.Cursor),
		statuses:         make(map[string]status.RunStatus),
		numbers:          make(map[numberKey]int64),
	}
	db.recorder = changelog.NewRecorder(changelogStore{db}, localSite)
	return db
}

var (
	_ domain.Repositories = (*DB)(nil)
	_ tx.Manager          = (*DB)(nil)
)

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

// Close is a no-op.
func (db *DB) Close() {}

type txState struct {
	undo []func()
}

type txKey struct{}

// RunInTransaction runs fn while holding the database lock. If fn returns
// an error every change made under the transaction is reverted. Nested
// calls join the outer transaction.
func (db *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	st := &txState{}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		for i := len(st.undo) - 1; i >= 0; i-- {
			st.undo[i]()
		}
		return err
	}
	return nil
}

// do runs fn in the transaction of ctx, opening one when there is none.
func (db *DB) do(ctx context.Context, fn func(ctx context.Context, st *txState) error) error {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx, st)
	}
	return db.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, ctx.Value(txKey{}).(*txState))
	})
}

// put stores v under k and records how to undo it.
func put[K comparable, V any](st *txState, m map[K]V, k K, v V) {
	old, existed := m[k]
	m[k] = v
	st.undo = append(st.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// remove deletes k and records how to undo it. Returns false when k was
// not present.
func remove[K comparable, V any](st *txState, m map[K]V, k K) bool {
	old, existed := m[k]
	if !existed {
		return false
	}
	delete(m, k)
	st.undo = append(st.undo, func() { m[k] = old })
	return true
}
