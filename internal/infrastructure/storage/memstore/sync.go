package memstore

import (
	"context"
	"sort"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/status"
	"sitesync/internal/sync/wire"
)

type changelogStore struct{ db *DB }

// Changelog returns the changelog of the site.
func (db *DB) Changelog() changelog.Store { return changelogStore{db} }

func (c changelogStore) Append(ctx context.Context, e changelog.Entry) (int64, error) {
	db := c.db
	err := db.do(ctx, func(_ context.Context, st *txState) error {
		prev := db.lastCursor
		db.lastCursor++
		e.Cursor = db.lastCursor
		db.entries = append(db.entries, e)
		n := len(db.entries) - 1
		st.undo = append(st.undo, func() {
			db.entries = db.entries[:n]
			db.lastCursor = prev
		})
		return nil
	})
	return e.Cursor, err
}

func (c changelogStore) ReadSince(ctx context.Context, f changelog.Filter) ([]changelog.Entry, error) {
	db := c.db
	var out []changelog.Entry
	err := db.do(ctx, func(context.Context, *txState) error {
		for _, e := range db.entries {
			if e.Cursor <= f.After {
				continue
			}
			if f.SourceSiteID != "" && e.SourceSiteID != f.SourceSiteID {
				continue
			}
			out = append(out, e)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (c changelogStore) LatestCursor(ctx context.Context) (int64, error) {
	db := c.db
	var latest int64
	err := db.do(ctx, func(context.Context, *txState) error {
		latest = db.lastCursor
		return nil
	})
	return latest, err
}

// PruneThrough keeps the newest entry so LatestCursor survives pruning.
func (c changelogStore) PruneThrough(ctx context.Context, through int64) (int64, error) {
	db := c.db
	var pruned int64
	err := db.do(ctx, func(_ context.Context, st *txState) error {
		old := db.entries
		var kept []changelog.Entry
		for i, e := range old {
			if e.Cursor <= through && i < len(old)-1 {
				pruned++
				continue
			}
			kept = append(kept, e)
		}
		db.entries = kept
		st.undo = append(st.undo, func() { db.entries = old })
		return nil
	})
	return pruned, err
}

type bufferStore struct{ db *DB }

// Buffer returns the sync buffer of the site.
func (db *DB) Buffer() buffer.Store { return bufferStore{db} }

func (b bufferStore) Stage(ctx context.Context, siteID string, records []wire.Record) (int, error) {
	db := b.db
	now := time.Now().UTC()
	err := db.do(ctx, func(_ context.Context, st *txState) error {
		for _, rec := range records {
			prev := db.receiptSeq
			db.receiptSeq++
			st.undo = append(st.undo, func() { db.receiptSeq = prev })

			staged := buffer.FromWire(siteID, rec, now)
			staged.ReceiptSeq = db.receiptSeq
			put(st, db.staged, bufferKey{siteID, rec.RecordID}, staged)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (b bufferStore) Unintegrated(ctx context.Context, siteID string, limit int) ([]buffer.Record, error) {
	db := b.db
	var out []buffer.Record
	err := db.do(ctx, func(context.Context, *txState) error {
		for k, r := range db.staged {
			if k.site == siteID && !r.IsIntegrated() {
				out = append(out, r)
			}
		}
		return nil
	})
	// never attempted first, then failures in retry order
	sort.Slice(out, func(i, j int) bool {
		fi, fj := out[i].IntegrationError != nil, out[j].IntegrationError != nil
		if fi != fj {
			return fj
		}
		return out[i].ReceiptSeq < out[j].ReceiptSeq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (b bufferStore) Get(ctx context.Context, siteID, recordID string) (*buffer.Record, error) {
	db := b.db
	var out *buffer.Record
	err := db.do(ctx, func(context.Context, *txState) error {
		r, ok := db.staged[bufferKey{siteID, recordID}]
		if !ok {
			return apperror.NewNotFound("sync_buffer", recordID).WithDetail("site_id", siteID)
		}
		out = &r
		return nil
	})
	return out, err
}

func (b bufferStore) MarkIntegrated(ctx context.Context, siteID, recordID string, outcome buffer.Outcome, detail string) error {
	return b.update(ctx, siteID, recordID, func(r *buffer.Record) {
		now := time.Now().UTC()
		r.IntegrationDatetime = &now
		r.IntegrationOutcome = &outcome
		r.IntegrationDetail = nil
		if detail != "" {
			r.IntegrationDetail = &detail
		}
		r.IntegrationError = nil
	})
}

func (b bufferStore) MarkFailed(ctx context.Context, siteID, recordID, errMsg string) error {
	db := b.db
	return db.do(ctx, func(_ context.Context, st *txState) error {
		key := bufferKey{siteID, recordID}
		r, ok := db.staged[key]
		if !ok {
			return apperror.NewNotFound("sync_buffer", recordID).WithDetail("site_id", siteID)
		}
		prev := db.receiptSeq
		db.receiptSeq++
		st.undo = append(st.undo, func() { db.receiptSeq = prev })

		r.IntegrationDatetime = nil
		r.IntegrationOutcome = nil
		r.IntegrationError = &errMsg
		r.ReceiptSeq = db.receiptSeq
		put(st, db.staged, key, r)
		return nil
	})
}

func (b bufferStore) update(ctx context.Context, siteID, recordID string, fn func(r *buffer.Record)) error {
	db := b.db
	return db.do(ctx, func(_ context.Context, st *txState) error {
		key := bufferKey{siteID, recordID}
		r, ok := db.staged[key]
		if !ok {
			return apperror.NewNotFound("sync_buffer", recordID).WithDetail("site_id", siteID)
		}
		fn(&r)
		put(st, db.staged, key, r)
		return nil
	})
}

type cursorStore struct{ db *DB }

// Cursors returns the cursor store of the site.
func (db *DB) Cursors() cursor.Store { return cursorStore{db} }

func (c cursorStore) Get(ctx context.Context, siteID string, dir cursor.Direction) (int64, error) {
	var v int64
	err := c.db.do(ctx, func(context.Context, *txState) error {
		v = c.db.cursors[cursorKey{siteID, dir}].Value
		return nil
	})
	return v, err
}

func (c cursorStore) Advance(ctx context.Context, siteID string, dir cursor.Direction, value int64) error {
	return c.db.do(ctx, func(_ context.Context, st *txState) error {
		key := cursorKey{siteID, dir}
		cur := c.db.cursors[key]
		if err := cursor.CheckAdvance(siteID, dir, cur.Value, value); err != nil {
			return err
		}
		if cur.Value == value && cur.SiteID != "" {
			return nil
		}
		put(st, c.db.cursors, key, cursor.Cursor{
			SiteID:    siteID,
			Direction: dir,
			Value:     value,
			UpdatedAt: time.Now().UTC(),
		})
		return nil
	})
}

func (c cursorStore) List(ctx context.Context) ([]cursor.Cursor, error) {
	var out []cursor.Cursor
	err := c.db.do(ctx, func(context.Context, *txState) error {
		for _, cur := range c.db.cursors {
			out = append(out, cur)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SiteID != out[j].SiteID {
			return out[i].SiteID < out[j].SiteID
		}
		return out[i].Direction < out[j].Direction
	})
	return out, err
}

type statusStore struct{ db *DB }

// Statuses returns the run status store of the site.
func (db *DB) Statuses() status.Store { return statusStore{db} }

func (s statusStore) Save(ctx context.Context, rs *status.RunStatus) error {
	return s.db.do(ctx, func(_ context.Context, st *txState) error {
		put(st, s.db.statuses, rs.SiteID, *rs.Clone())
		return nil
	})
}

func (s statusStore) Latest(ctx context.Context, siteID string) (*status.RunStatus, error) {
	var out *status.RunStatus
	err := s.db.do(ctx, func(context.Context, *txState) error {
		rs, ok := s.db.statuses[siteID]
		if !ok {
			return apperror.NewNotFound("sync_status", siteID)
		}
		out = rs.Clone()
		return nil
	})
	return out, err
}
