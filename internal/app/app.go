// Package app assembles sites, their drivers and the scheduler from
// configuration. It is shared by the commands and the end-to-end tests.
package app

import (
	"context"
	"fmt"

	"sitesync/internal/config"
	"sitesync/internal/hub"
	"sitesync/internal/infrastructure/storage"
	"sitesync/internal/infrastructure/transport/httppeer"
	"sitesync/internal/sync/driver"
	"sitesync/internal/sync/integration"
	"sitesync/internal/sync/peer"
	"sitesync/internal/sync/processor"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/translator/tables"
	"sitesync/pkg/logger"
)

// Site is one fully wired local site.
type Site struct {
	ID      string
	Backend *storage.Backend
	Driver  *driver.Driver
}

// NewSite wires a driver for siteID over backend and p.
func NewSite(siteID string, backend *storage.Backend, p peer.Peer, registry *translator.Registry, cfg driver.Config, log *logger.Logger) *Site {
	engine := integration.NewEngine(integration.Config{
		SiteID:   siteID,
		Registry: registry,
		Buffer:   backend.Buffer,
		Repos:    backend.Repos,
		Tx:       backend.Tx,
		Logger:   log,
	})
	pipeline := processor.NewPipeline(processor.Config{
		SiteID:           siteID,
		Repos:            backend.Repos,
		Tx:               backend.Tx,
		Logger:           log,
		InvoiceTable:     tables.TableInvoice,
		RequisitionTable: tables.TableRequisition,
		Invoices:         processor.ShipmentProcessors(),
		Requisitions:     processor.RequisitionProcessors(),
	})
	d := driver.New(siteID, cfg, driver.Deps{
		Tx:        backend.Tx,
		Repos:     backend.Repos,
		Changelog: backend.Changelog,
		Buffer:    backend.Buffer,
		Cursors:   backend.Cursors,
		Statuses:  backend.Statuses,
		Registry:  registry,
		Engine:    engine,
		Pipeline:  pipeline,
		Peer:      p,
		Logger:    log,
	})
	return &Site{ID: siteID, Backend: backend, Driver: d}
}

// Runtime holds every site served by the process.
type Runtime struct {
	Sites     []*Site
	Scheduler *driver.Scheduler
	Registry  *translator.Registry

	// Hub is set when the sites exchange records through an in-process hub
	Hub *hub.Hub
}

// Build opens the storage of every configured site and wires it to the
// remote peer, or to an in-process hub when no remote url is configured.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	if err := cfg.RequireSites(); err != nil {
		return nil, err
	}
	registry, err := tables.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Registry: registry}
	if cfg.Remote.URL == "" {
		rt.Hub, err = hub.New(cfg.Hub.Sites, log)
		if err != nil {
			return nil, err
		}
	}

	var drivers []*driver.Driver
	for _, sc := range cfg.LocalSites() {
		p, err := rt.peerFor(cfg, sc.SiteID)
		if err != nil {
			rt.Close()
			return nil, err
		}
		backend, err := storage.Open(ctx, sc.Storage, sc.SiteID)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open storage of site %s: %w", sc.SiteID, err)
		}
		site := NewSite(sc.SiteID, backend, p, registry, cfg.DriverConfig(), log)
		rt.Sites = append(rt.Sites, site)
		drivers = append(drivers, site.Driver)
	}

	rt.Scheduler = driver.NewScheduler(cfg.Interval(), log, drivers...)
	return rt, nil
}

func (rt *Runtime) peerFor(cfg *config.Config, siteID string) (peer.Peer, error) {
	if rt.Hub != nil {
		return rt.Hub.Local(siteID), nil
	}
	return httppeer.New(httppeer.Config{
		BaseURL:  cfg.Remote.URL,
		SiteID:   siteID,
		Timeout:  cfg.Remote.Timeout,
		Compress: cfg.Remote.Compress,
	}, nil)
}

// Site returns the site with id siteID.
func (rt *Runtime) Site(siteID string) (*Site, bool) {
	for _, s := range rt.Sites {
		if s.ID == siteID {
			return s, true
		}
	}
	return nil, false
}

// Backends returns the storage of every site keyed by site id.
func (rt *Runtime) Backends() map[string]*storage.Backend {
	out := make(map[string]*storage.Backend, len(rt.Sites))
	for _, s := range rt.Sites {
		out[s.ID] = s.Backend
	}
	return out
}

// Close releases every site's storage.
func (rt *Runtime) Close() {
	for _, s := range rt.Sites {
		s.Backend.Close()
	}
}
