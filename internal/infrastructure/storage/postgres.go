package storage

import (
	"context"

	corenumerator "sitesync/internal/core/numerator"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/domain/documents/requisition"
	"sitesync/internal/infrastructure/numerator"
	"sitesync/internal/infrastructure/storage/postgres"
	"sitesync/internal/infrastructure/storage/postgres/catalog_repo"
	"sitesync/internal/infrastructure/storage/postgres/document_repo"
	"sitesync/internal/sync/changelog"
	"sitesync/pkg/logger"
)

func openPostgres(ctx context.Context, cfg Config, siteID string) (*Backend, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DSN)
	poolCfg.AppName = "sitesync-" + siteID
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txm := postgres.NewTxManager(pool)
	changes := postgres.NewChangelogStore(txm)
	repos := newPostgresRepos(txm, changelog.NewRecorder(changes, siteID))

	logger.Info(ctx, "postgres storage opened", "site_id", siteID)

	return &Backend{
		Tx:        txm,
		Repos:     repos,
		Changelog: changes,
		Buffer:    postgres.NewBufferStore(txm),
		Cursors:   postgres.NewCursorStore(txm),
		Statuses:  postgres.NewStatusStore(txm),
		ping: func(ctx context.Context) error {
			pool.LogStats(ctx)
			return pool.Ping(ctx)
		},
		close: pool.Close,
	}, nil
}

// postgresRepos implements domain.Repositories.
type postgresRepos struct {
	names            *catalog_repo.NameRepo
	items            *catalog_repo.ItemRepo
	stores           *catalog_repo.StoreRepo
	invoices         *document_repo.InvoiceRepo
	invoiceLines     *document_repo.InvoiceLineRepo
	requisitions     *document_repo.RequisitionRepo
	requisitionLines *document_repo.RequisitionLineRepo
	numbers          *numerator.Service
}

func newPostgresRepos(txm *postgres.TxManager, rec *changelog.Recorder) *postgresRepos {
	invoices := document_repo.NewInvoiceRepo(txm, rec)
	requisitions := document_repo.NewRequisitionRepo(txm, rec)
	return &postgresRepos{
		names:            catalog_repo.NewNameRepo(txm, rec),
		items:            catalog_repo.NewItemRepo(txm, rec),
		stores:           catalog_repo.NewStoreRepo(txm, rec),
		invoices:         invoices,
		invoiceLines:     document_repo.NewInvoiceLineRepo(txm, rec, invoices),
		requisitions:     requisitions,
		requisitionLines: document_repo.NewRequisitionLineRepo(txm, rec, requisitions),
		numbers:          numerator.New(txm),
	}
}

func (r *postgresRepos) Names() name.Repository { return r.names }
func (r *postgresRepos) Items() item.Repository { return r.items }
func (r *postgresRepos) Stores() store.Repository { return r.stores }
func (r *postgresRepos) Invoices() invoice.Repository { return r.invoices }
func (r *postgresRepos) InvoiceLines() invoice.LineRepository { return r.invoiceLines }
func (r *postgresRepos) Requisitions() requisition.Repository { return r.requisitions }
func (r *postgresRepos) RequisitionLines() requisition.LineRepository { return r.requisitionLines }
func (r *postgresRepos) Numbers() corenumerator.Generator { return r.numbers }
