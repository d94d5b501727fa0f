package tables

import (
	"context"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/name"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// LegacyName is the wire payload of the name table.
type LegacyName struct {
	ID       string `json:"ID"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Customer bool   `json:"customer"`
	Supplier bool   `json:"supplier"`
}

// NameFromWire converts a payload into a row.
func NameFromWire(l LegacyName) (*name.Name, error) {
	return &name.Name{
		BaseRow:    entity.BaseRow{ID: l.ID},
		Code:       l.Code,
		Name:       l.Name,
		IsCustomer: l.Customer,
		IsSupplier: l.Supplier,
	}, nil
}

// NameToWire converts a row into a payload.
func NameToWire(n *name.Name) LegacyName {
	return LegacyName{
		ID:       n.ID,
		Code:     n.Code,
		Name:     n.Name,
		Customer: n.IsCustomer,
		Supplier: n.IsSupplier,
	}
}

// NameTranslator translates the name table.
type NameTranslator struct{}

func (NameTranslator) TableName() string { return TableName }
func (NameTranslator) PullDependencies() []string { return nil }

func (NameTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyName) (*name.Name, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			return NameFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *name.Name) error {
			return c.Names().Upsert(ctx, row)
		},
		func(ctx context.Context, c domain.Repositories, id string) error {
			return c.Names().Delete(ctx, id)
		},
	)
}

func (NameTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.Names().GetByID, NameToWire)
}
