// Package peer defines the remote side of a sync cycle.
package peer

import (
	"context"

	"sitesync/internal/sync/wire"
)

// Peer is the central server as seen by one site. Implementations are bound
// to the calling site.
type Peer interface {
	// Push sends changed records and returns the highest changelog cursor
	// the server has durably accepted.
	Push(ctx context.Context, records []wire.Record) (int64, error)

	// Pull returns up to limit records after since, plus the cursor to
	// pass on the next call. A page shorter than limit means the stream is
	// drained for now.
	Pull(ctx context.Context, since int64, limit int) ([]wire.Record, int64, error)
}
