package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/entity"
	"sitesync/internal/core/types"
	"sitesync/internal/domain/documents/invoice"
	"sitesync/internal/sync/changelog"
)

func TestExtractDBColumns_FlattensBaseRow(t *testing.T) {
	cols := ExtractDBColumns[invoice.Line]()

	require.NotEmpty(t, cols)
	assert.Equal(t, "id", cols[0])
	for _, expected := range []string{"invoice_id", "item_id", "pack_size", "number_of_packs", "cost_price", "sell_price", "note"} {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_ChangelogEntry(t *testing.T) {
	assert.Equal(t,
		[]string{"cursor", "table_name", "record_id", "action", "store_id", "name_id", "source_site_id", "created_at"},
		ExtractDBColumns[changelog.Entry]())
}

func TestStructToMap_InvoiceLine(t *testing.T) {
	note := "fragile"
	line := invoice.Line{
		BaseRow:       entity.BaseRow{ID: "line-1"},
		InvoiceID:     "inv-1",
		ItemID:        "item-1",
		PackSize:      10,
		NumberOfPacks: 2,
		SellPrice:     types.NewMoney(1.5),
		Note:          &note,
	}

	m := StructToMap(&line)

	assert.Equal(t, "line-1", m["id"])
	assert.Equal(t, "inv-1", m["invoice_id"])
	assert.Equal(t, 10.0, m["pack_size"])
	assert.Equal(t, &note, m["note"])
	assert.True(t, types.NewMoney(1.5).Equal(m["sell_price"].(types.Money)))
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*invoice.Line)(nil)))
}
