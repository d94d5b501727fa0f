// Package changelog tracks local mutations that must be pushed to the
// central server. Entries are appended in the transaction of the mutation
// they describe and are addressed by a strictly increasing cursor.
package changelog

import (
	"context"
	"time"

	"sitesync/internal/sync/wire"
)

// Entry is one tracked mutation. Entries are immutable.
type Entry struct {
	Cursor       int64       `db:"cursor" json:"cursor"`
	TableName    string      `db:"table_name" json:"tableName"`
	RecordID     string      `db:"record_id" json:"recordId"`
	Action       wire.Action `db:"action" json:"action"`
	StoreID      *string     `db:"store_id" json:"storeId,omitempty"`
	NameID       *string     `db:"name_id" json:"nameId,omitempty"`
	SourceSiteID string      `db:"source_site_id" json:"sourceSiteId"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// Routing holds the keys the central server routes a change by.
// Empty keys mean the row is shared with every site.
type Routing struct {
	StoreID string
	NameID  string
}

// Filter selects entries for a push page.
type Filter struct {
	// SourceSiteID restricts entries to changes made by this site
	SourceSiteID string
	// After is the exclusive lower cursor bound
	After int64
	Limit int
}

// Store is the persistent changelog.
type Store interface {
	// Append stores e and returns its cursor. Must run inside the
	// transaction of the tracked mutation.
	Append(ctx context.Context, e Entry) (int64, error)

	// ReadSince returns entries matching f ordered by cursor. Reading is
	// restartable: calling again with After set to the last seen cursor
	// continues where the previous page ended.
	ReadSince(ctx context.Context, f Filter) ([]Entry, error)

	// LatestCursor returns the highest cursor ever appended, 0 if none.
	LatestCursor(ctx context.Context) (int64, error)

	// PruneThrough deletes entries with cursor <= through.
	PruneThrough(ctx context.Context, through int64) (int64, error)
}

type sourceSiteKey struct{}

// WithSourceSite marks mutations made under ctx as originating from siteID.
// Integration uses it so integrated rows are never pushed back by this site.
func WithSourceSite(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, sourceSiteKey{}, siteID)
}

// SourceSite returns the site set by WithSourceSite.
func SourceSite(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(sourceSiteKey{}).(string)
	return s, ok && s != ""
}

// Recorder appends changelog entries on behalf of repositories.
type Recorder struct {
	store     Store
	localSite string
	now       func() time.Time
}

// NewRecorder creates a Recorder. Mutations without an explicit source site
// are attributed to localSite.
func NewRecorder(store Store, localSite string) *Recorder {
	return &Recorder{
		store:     store,
		localSite: localSite,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an entry for a mutation of table/recordID.
func (r *Recorder) Record(ctx context.Context, table, recordID string, action wire.Action, routing Routing) (int64, error) {
	source := r.localSite
	if s, ok := SourceSite(ctx); ok {
		source = s
	}
	return r.store.Append(ctx, Entry{
		TableName:    table,
		RecordID:     recordID,
		Action:       action,
		StoreID:      optional(routing.StoreID),
		NameID:       optional(routing.NameID),
		SourceSiteID: source,
		CreatedAt:    r.now(),
	})
}

// LocalSite returns the site mutations are attributed to by default.
func (r *Recorder) LocalSite() string {
	return r.localSite
}

// MaxCursor returns the highest cursor in entries, 0 for an empty slice.
func MaxCursor(entries []Entry) int64 {
	var max int64
	for _, e := range entries {
		if e.Cursor > max {
			max = e.Cursor
		}
	}
	return max
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value of an optional routing key.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
