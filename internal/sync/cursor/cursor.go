// Package cursor stores the per-site positions of the push and pull streams.
package cursor

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/apperror"
)

// Direction names a stream.
type Direction string

const (
	// Push addresses the local changelog
	Push Direction = "push"
	// Pull addresses the central server stream of the site
	Pull Direction = "pull"
)

// Cursor is one persisted position.
type Cursor struct {
	SiteID    string    `db:"site_id" json:"siteId"`
	Direction Direction `db:"direction" json:"direction"`
	Value     int64     `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Store persists cursors, one row per (site, direction).
type Store interface {
	// Get returns the cursor value, 0 when never advanced.
	Get(ctx context.Context, siteID string, dir Direction) (int64, error)

	// Advance moves the cursor forward. Moving backwards is a CONFLICT;
	// advancing to the current value is a no-op.
	Advance(ctx context.Context, siteID string, dir Direction, value int64) error

	// List returns all cursors ordered by site and direction.
	List(ctx context.Context) ([]Cursor, error)
}

// CheckAdvance validates a move from current to next.
func CheckAdvance(siteID string, dir Direction, current, next int64) error {
	if next < current {
		return apperror.NewConflict(fmt.Sprintf("%s cursor cannot move backwards", dir)).
			WithDetail("site_id", siteID).
			WithDetail("current", current).
			WithDetail("requested", next)
	}
	return nil
}

// MinPush returns the lowest push cursor over all sites, or 0 when no site
// has pushed yet. Changelog entries at or below it are acknowledged by every
// known site.
func MinPush(cursors []Cursor) int64 {
	var (
		min   int64
		found bool
	)
	for _, c := range cursors {
		if c.Direction != Push {
			continue
		}
		if !found || c.Value < min {
			min = c.Value
			found = true
		}
	}
	return min
}
