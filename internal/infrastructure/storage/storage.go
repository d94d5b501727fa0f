// Package storage opens the storage backend of a site.
package storage

import (
	"context"
	"fmt"
	"time"

	"sitesync/internal/core/apperror"
	"sitesync/internal/core/tx"
	"sitesync/internal/domain"
	"sitesync/internal/infrastructure/storage/memstore"
	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/cursor"
	"sitesync/internal/sync/status"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config selects and configures a storage driver.
type Config struct {
	Driver string `yaml:"driver"`

	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`

	// Migrate applies the schema on open
	Migrate bool `yaml:"migrate"`
}

// Validate checks the driver settings.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if c.DSN == "" {
			return apperror.NewValidation("storage dsn is required for the postgres driver").
				WithDetail("field", "storage.dsn")
		}
		return nil
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown storage driver %q", c.Driver)).
			WithDetail("field", "storage.driver")
	}
}

// Backend bundles the stores of one site.
type Backend struct {
	Tx        tx.Manager
	Repos     domain.Repositories
	Changelog changelog.Store
	Buffer    buffer.Store
	Cursors   cursor.Store
	Statuses  status.Store

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks that the backend is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend's resources.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the backend of siteID.
func Open(ctx context.Context, cfg Config, siteID string) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, siteID)
	default:
		return NewMemory(siteID), nil
	}
}

// NewMemory creates an in-memory backend.
func NewMemory(siteID string) *Backend {
	db := memstore.New(siteID)
	return &Backend{
		Tx:        db,
		Repos:     db,
		Changelog: db.Changelog(),
		Buffer:    db.Buffer(),
		Cursors:   db.Cursors(),
		Statuses:  db.Statuses(),
		ping:      db.Ping,
		close:     db.Close,
	}
}
