// Package catalog_repo provides the PostgreSQL repositories of the shared
// catalogs: names, items and stores. Catalog rows are broadcast to every
// site so their changelog entries carry no routing keys.
package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/infrastructure/storage/postgres"
	"sitesync/internal/sync/changelog"
)

// SQL table names.
const (
	NameTable  = "cat_name"
	ItemTable  = "cat_item"
	StoreTable = "cat_store"
)

// NameRepo implements name.Repository.
type NameRepo struct {
	*postgres.RowRepo[name.Name]
}

var _ name.Repository = (*NameRepo)(nil)

// NewNameRepo creates a name repository.
func NewNameRepo(txm *postgres.TxManager, rec *changelog.Recorder) *NameRepo {
	return &NameRepo{postgres.NewRowRepo[name.Name](txm, rec, NameTable, domain.TableName)}
}

func (r *NameRepo) Upsert(ctx context.Context, n *name.Name) error {
	return r.Save(ctx, n.ID, n, changelog.Routing{})
}

func (r *NameRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, postgres.NoRouting[name.Name])
}

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*postgres.RowRepo[item.Item]
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates an item repository.
func NewItemRepo(txm *postgres.TxManager, rec *changelog.Recorder) *ItemRepo {
	return &ItemRepo{postgres.NewRowRepo[item.Item](txm, rec, ItemTable, domain.TableItem)}
}

func (r *ItemRepo) Upsert(ctx context.Context, i *item.Item) error {
	return r.Save(ctx, i.ID, i, changelog.Routing{})
}

func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, postgres.NoRouting[item.Item])
}

// StoreRepo implements store.Repository.
type StoreRepo struct {
	*postgres.RowRepo[store.Store]
}

var _ store.Repository = (*StoreRepo)(nil)

// NewStoreRepo creates a store repository.
func NewStoreRepo(txm *postgres.TxManager, rec *changelog.Recorder) *StoreRepo {
	return &StoreRepo{postgres.NewRowRepo[store.Store](txm, rec, StoreTable, domain.TableStore)}
}

func (r *StoreRepo) FindByNameID(ctx context.Context, nameID string) (*store.Store, error) {
	return r.FindOne(ctx, r.byNameQuery(nameID))
}

func (r *StoreRepo) byNameQuery(nameID string) squirrel.SelectBuilder {
	return r.Select().Where(squirrel.Eq{"name_id": nameID}).OrderBy("id")
}

func (r *StoreRepo) ListBySite(ctx context.Context, siteID string) ([]*store.Store, error) {
	return r.FindAll(ctx, r.bySiteQuery(siteID))
}

func (r *StoreRepo) bySiteQuery(siteID string) squirrel.SelectBuilder {
	return r.Select().Where(squirrel.Eq{"site_id": siteID}).OrderBy("code")
}

func (r *StoreRepo) Upsert(ctx context.Context, s *store.Store) error {
	return r.Save(ctx, s.ID, s, changelog.Routing{})
}

func (r *StoreRepo) Delete(ctx context.Context, id string) error {
	return r.Remove(ctx, id, postgres.NoRouting[store.Store])
}
