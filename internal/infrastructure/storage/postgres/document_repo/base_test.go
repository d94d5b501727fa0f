package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedQuery(t *testing.T) {
	repo := NewRequisitionRepo(nil, nil)

	sql, args, err := linkedQuery(repo.RowRepo, "linked_requisition_id", "req-1").Limit(1).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM doc_requisition WHERE linked_requisition_id = $1 ORDER BY id LIMIT 1")
	assert.Equal(t, []any{"req-1"}, args)
}

func TestLinesQuery_SelectsEveryColumn(t *testing.T) {
	repo := NewInvoiceLineRepo(nil, nil, nil)

	sql, args, err := linesQuery(repo.RowRepo, "invoice_id", "inv-1").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, invoice_id, item_id, item_code, item_name, batch, pack_size, number_of_packs, "+
			"cost_price, sell_price, note FROM doc_invoice_line WHERE invoice_id = $1 ORDER BY id",
		sql)
	assert.Equal(t, []any{"inv-1"}, args)
}
