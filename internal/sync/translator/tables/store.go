package tables

import (
	"context"
	"errors"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/store"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// LegacyStore is the wire payload of the store table.
type LegacyStore struct {
	ID     string `json:"ID"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameID string `json:"name_ID"`
	SiteID string `json:"site_id"`
}

// StoreFromWire converts a payload into a row.
func StoreFromWire(l LegacyStore) (*store.Store, error) {
	if l.SiteID == "" {
		return nil, errors.New("store has no site_id")
	}
	return &store.Store{
		BaseRow: entity.BaseRow{ID: l.ID},
		Code:    l.Code,
		Name:    l.Name,
		NameID:  l.NameID,
		SiteID:  l.SiteID,
	}, nil
}

// StoreToWire converts a row into a payload.
func StoreToWire(s *store.Store) LegacyStore {
	return LegacyStore{
		ID:     s.ID,
		Code:   s.Code,
		Name:   s.Name,
		NameID: s.NameID,
		SiteID: s.SiteID,
	}
}

// StoreTranslator translates the store table.
type StoreTranslator struct{}

func (StoreTranslator) TableName() string { return TableStore }
func (StoreTranslator) PullDependencies() []string { return []string{TableName} }

func (StoreTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyStore) (*store.Store, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			n, err := conn.Names().GetByID(ctx, l.NameID)
			if err := requireRow(rec, "name", l.NameID, n, err); err != nil {
				return nil, err
			}
			return StoreFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *store.Store) error {
			return c.Stores().Upsert(ctx, row)
		},
		func(ctx context.Context, c domain.Repositories, id string) error {
			return c.Stores().Delete(ctx, id)
		},
	)
}

func (StoreTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.Stores().GetByID, StoreToWire)
}
