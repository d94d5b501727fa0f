package tables

import (
	"context"
	"fmt"

	"sitesync/internal/core/entity"
	"sitesync/internal/domain"
	"sitesync/internal/domain/catalogs/item"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/translator"
	"sitesync/internal/sync/wire"
)

// Legacy item kinds.
const (
	legacyItemGeneral = "general"
	legacyItemService = "service"
)

// LegacyItem is the wire payload of the item table.
type LegacyItem struct {
	ID              string  `json:"ID"`
	Code            string  `json:"code"`
	Name            string  `json:"item_name"`
	TypeOf          string  `json:"type_of"`
	DefaultPackSize float64 `json:"default_pack_size"`
}

// ItemFromWire converts a payload into a row.
func ItemFromWire(l LegacyItem) (*item.Item, error) {
	var t item.Type
	switch l.TypeOf {
	case legacyItemGeneral, "":
		t = item.TypeStock
	case legacyItemService:
		t = item.TypeService
	default:
		return nil, fmt.Errorf("unknown item type_of %q", l.TypeOf)
	}
	packSize := l.DefaultPackSize
	if packSize == 0 {
		packSize = 1
	}
	return &item.Item{
		BaseRow:         entity.BaseRow{ID: l.ID},
		Code:            l.Code,
		Name:            l.Name,
		Type:            t,
		DefaultPackSize: packSize,
	}, nil
}

// ItemToWire converts a row into a payload.
func ItemToWire(i *item.Item) LegacyItem {
	typeOf := legacyItemGeneral
	if i.Type == item.TypeService {
		typeOf = legacyItemService
	}
	return LegacyItem{
		ID:              i.ID,
		Code:            i.Code,
		Name:            i.Name,
		TypeOf:          typeOf,
		DefaultPackSize: i.DefaultPackSize,
	}
}

// ItemTranslator translates the item table.
type ItemTranslator struct{}

func (ItemTranslator) TableName() string { return TableItem }
func (ItemTranslator) PullDependencies() []string { return nil }

func (ItemTranslator) TryTranslatePull(ctx context.Context, conn domain.Repositories, rec wire.Record) (translator.PullResult, error) {
	return pullRecord(rec,
		func(l LegacyItem) (*item.Item, error) {
			if err := checkID(rec, l.ID); err != nil {
				return nil, err
			}
			return ItemFromWire(l)
		},
		func(ctx context.Context, c domain.Repositories, row *item.Item) error {
			return c.Items().Upsert(ctx, row)
		},
		func(ctx context.Context, c domain.Repositories, id string) error {
			return c.Items().Delete(ctx, id)
		},
	)
}

func (ItemTranslator) TranslatePush(ctx context.Context, conn domain.Repositories, entry changelog.Entry) (*wire.Record, error) {
	return pushRecord(ctx, entry, conn.Items().GetByID, ItemToWire)
}
