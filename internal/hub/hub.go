// Package hub is an in-memory central server. Sites push the changes they
// made and pull the changes addressed to them. It backs local development
// and the end-to-end tests of the sync pipeline.
package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/peer"
	"sitesync/internal/sync/wire"
	"sitesync/pkg/logger"
)

// Site describes which documents are routed to a site.
type Site struct {
	ID string `yaml:"id" json:"id"`

	// Stores lists the ids of stores active on the site
	Stores []string `yaml:"stores" json:"stores"`

	// Names lists the name ids the site's stores trade under
	Names []string `yaml:"names" json:"names"`
}

// Hub keeps a global log of pushed records. The position of a record in the
// log is its hub cursor.
type Hub struct {
	mu sync.RWMutex

	records []wire.Record
	acks    map[string]int64

	sites  map[string]bool
	stores map[string]string
	names  map[string]string

	log *logger.Logger
}

// New creates a hub serving sites. A store or name claimed by two sites is
// a validation error.
func New(sites []Site, log *logger.Logger) (*Hub, error) {
	if log == nil {
		log = logger.Default()
	}
	h := &Hub{
		acks:   make(map[string]int64),
		sites:  make(map[string]bool),
		stores: make(map[string]string),
		names:  make(map[string]string),
		log:    log.WithComponent("hub"),
	}
	for _, s := range sites {
		if s.ID == "" {
			return nil, apperror.NewValidation("hub site id is required")
		}
		h.sites[s.ID] = true
		if err := claim(h.stores, s.Stores, s.ID, "store"); err != nil {
			return nil, err
		}
		if err := claim(h.names, s.Names, s.ID, "name"); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func claim(owners map[string]string, keys []string, siteID, kind string) error {
	for _, k := range keys {
		if owner, ok := owners[k]; ok && owner != siteID {
			return apperror.NewValidation(fmt.Sprintf("%s %s is routed to both %s and %s", kind, k, owner, siteID))
		}
		owners[k] = siteID
	}
	return nil
}

// Sites returns the configured site ids in order.
func (h *Hub) Sites() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.sites))
	for id := range h.sites {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) checkSite(siteID string) error {
	if !h.sites[siteID] {
		return apperror.NewValidation(fmt.Sprintf("unknown site %q", siteID)).WithDetail("site_id", siteID)
	}
	return nil
}

// Push appends records sent by siteID and returns the highest changelog
// cursor of the site accepted so far. Records at or below that cursor were
// accepted before and are not appended again.
func (h *Hub) Push(ctx context.Context, siteID string, records []wire.Record) (int64, error) {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return 0, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkSite(siteID); err != nil {
		return 0, err
	}

	ack := h.acks[siteID]
	appended := 0
	for _, r := range records {
		if r.Cursor > 0 && r.Cursor <= ack {
			continue
		}
		r.SourceSiteID = siteID
		h.records = append(h.records, r)
		appended++
		if r.Cursor > ack {
			ack = r.Cursor
		}
	}
	h.acks[siteID] = ack

	h.log.WithContext(ctx).Debugw("records pushed",
		"site_id", siteID, "received", len(records), "appended", appended, "ack", ack)
	return ack, nil
}

// Pull returns up to limit records after since that are addressed to
// siteID. Records pushed by siteID itself are never returned. The returned
// cursor is the last hub position examined.
func (h *Hub) Pull(ctx context.Context, siteID string, since int64, limit int) ([]wire.Record, int64, error) {
	if since < 0 {
		return nil, 0, apperror.NewValidation("since must not be negative")
	}
	if limit <= 0 {
		return nil, 0, apperror.NewValidation("limit must be positive")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := h.checkSite(siteID); err != nil {
		return nil, 0, err
	}

	next := since
	var out []wire.Record
	for pos := since; pos < int64(len(h.records)) && len(out) < limit; pos++ {
		r := h.records[pos]
		next = pos + 1
		if !h.routes(r, siteID) {
			continue
		}
		r.Cursor = next
		out = append(out, r)
	}

	h.log.WithContext(ctx).Debugw("records pulled",
		"site_id", siteID, "since", since, "returned", len(out), "next", next)
	return out, next, nil
}

// routes reports whether r is addressed to siteID. Rows without routing
// keys are shared with every site.
func (h *Hub) routes(r wire.Record, siteID string) bool {
	if r.SourceSiteID == siteID {
		return false
	}
	if r.StoreID == "" && r.NameID == "" {
		return true
	}
	return h.stores[r.StoreID] == siteID || h.names[r.NameID] == siteID
}

// Len returns the number of records in the log.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Ack returns the highest changelog cursor accepted from siteID.
func (h *Hub) Ack(siteID string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.acks[siteID]
}

// Local returns a peer.Peer that calls the hub in-process as siteID.
func (h *Hub) Local(siteID string) peer.Peer {
	return localPeer{hub: h, siteID: siteID}
}

type localPeer struct {
	hub    *Hub
	siteID string
}

func (p localPeer) Push(ctx context.Context, records []wire.Record) (int64, error) {
	return p.hub.Push(ctx, p.siteID, records)
}

func (p localPeer) Pull(ctx context.Context, since int64, limit int) ([]wire.Record, int64, error) {
	return p.hub.Pull(ctx, p.siteID, since, limit)
}
