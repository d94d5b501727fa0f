package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/sync/buffer"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/status"
	"sitesync/internal/sync/wire"
)

func TestUpsertQuery_ReplacesNonKeyColumns(t *testing.T) {
	sql, args, err := upsertQuery("cat_name", []string{"id"}, map[string]any{
		"name": "Central",
		"id":   "n1",
		"code": "C",
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO cat_name (code,id,name) VALUES ($1,$2,$3) "+
			"ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name",
		sql)
	assert.Equal(t, []any{"C", "n1", "Central"}, args)
}

func TestUpsertQuery_KeysOnly(t *testing.T) {
	sql, _, err := upsertQuery("t", []string{"id"}, map[string]any{"id": "x"}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "ON CONFLICT (id) DO NOTHING"))
}

func TestReadSinceQuery(t *testing.T) {
	sql, args, err := readSinceQuery(changelog.Filter{SourceSiteID: "site-a", After: 7, Limit: 50}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT cursor, table_name, record_id, action, store_id, name_id, source_site_id, created_at "+
			"FROM sync_changelog WHERE cursor > $1 AND source_site_id = $2 ORDER BY cursor LIMIT 50",
		sql)
	assert.Equal(t, []any{int64(7), "site-a"}, args)
}

func TestReadSinceQuery_NoSourceNoLimit(t *testing.T) {
	sql, _, err := readSinceQuery(changelog.Filter{}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "source_site_id =")
	assert.NotContains(t, sql, "LIMIT")
}

func TestPruneQuery_KeepsNewestEntry(t *testing.T) {
	sql, args, err := pruneQuery(42).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"DELETE FROM sync_changelog WHERE cursor <= $1 AND cursor < (SELECT MAX(cursor) FROM sync_changelog)",
		sql)
	assert.Equal(t, []any{int64(42)}, args)
}

func TestStageQuery_ResetsOutcomeOnConflict(t *testing.T) {
	rec := buffer.FromWire("site-a", wire.Record{
		TableName: "item",
		RecordID:  "i1",
		Action:    wire.ActionUpsert,
		Data:      []byte(`{"ID":"i1"}`),
		Cursor:    3,
	}, time.Now())

	sql, args, err := stageQuery(rec).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO sync_buffer (site_id,record_id,table_name,action,data,"))
	assert.Contains(t, sql, "receipt_seq = nextval('sync_buffer_receipt_seq')")
	assert.Contains(t, sql, "integration_datetime = NULL")
	assert.Contains(t, sql, "integration_error = NULL")
	require.Len(t, args, 10)
	assert.Equal(t, `{"ID":"i1"}`, args[4])
}

func TestStageQuery_DeleteHasNullPayload(t *testing.T) {
	rec := buffer.FromWire("site-a", wire.Record{TableName: "item", RecordID: "i1", Action: wire.ActionDelete}, time.Now())

	_, args, err := stageQuery(rec).ToSql()
	require.NoError(t, err)
	assert.Nil(t, args[4])
}

func TestUnintegratedQuery_NewRecordsBeforeFailures(t *testing.T) {
	sql, args, err := unintegratedQuery("site-a", 25).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql,
		"FROM sync_buffer WHERE integration_datetime IS NULL AND site_id = $1 "+
			"ORDER BY integration_error IS NOT NULL, receipt_seq LIMIT 25"))
	assert.Equal(t, []any{"site-a"}, args)

	sql, _, err = unintegratedQuery("site-a", 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")
}

func TestMarkFailedQuery_MovesRecordToBack(t *testing.T) {
	sql, args, err := builder().
		Update(bufferTable).
		SetMap(failedSet("missing parent")).
		ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "receipt_seq = nextval('sync_buffer_receipt_seq')")
	assert.Contains(t, sql, "integration_error = $")
	assert.Contains(t, args, "missing parent")
}

func TestStatusRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rs := status.New("run-1", "site-a", now)
	require.NoError(t, rs.Transition(status.PhasePushing, now))
	rs.Counters.Pushed = 12
	rs.Fail("TRANSPORT_ERROR", assert.AnError, now)

	row, err := toStatusRow(rs)
	require.NoError(t, err)
	assert.Equal(t, "error", row.Phase)

	back, err := row.toStatus()
	require.NoError(t, err)
	assert.Equal(t, rs, back)
}
