package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/sync/wire"
	"sitesync/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := New([]Site{
		{ID: "site-a", Stores: []string{"store-a"}, Names: []string{"name-a"}},
		{ID: "site-b", Stores: []string{"store-b"}, Names: []string{"name-b"}},
		{ID: "site-c"},
	}, logger.NewNop())
	require.NoError(t, err)
	return h
}

func rec(id string, cursor int64, storeID, nameID string) wire.Record {
	return wire.Record{
		TableName: "invoice",
		RecordID:  id,
		Action:    wire.ActionUpsert,
		Data:      []byte(`{}`),
		Cursor:    cursor,
		StoreID:   storeID,
		NameID:    nameID,
	}
}

func ids(records []wire.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.RecordID)
	}
	return out
}

func TestNew_RejectsDoubleClaims(t *testing.T) {
	_, err := New([]Site{
		{ID: "site-a", Stores: []string{"s1"}},
		{ID: "site-b", Stores: []string{"s1"}},
	}, nil)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = New([]Site{{ID: ""}}, nil)
	assert.Error(t, err)
}

func TestPushPull_Routing(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	assert.Equal(t, []string{"site-a", "site-b", "site-c"}, h.Sites())

	ack, err := h.Push(ctx, "site-a", []wire.Record{
		rec("shared", 1, "", ""),
		rec("to-b", 2, "store-a", "name-b"),
		rec("own", 3, "store-a", "name-a"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ack)

	got, next, err := h.Pull(ctx, "site-b", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "to-b"}, ids(got))
	assert.Equal(t, int64(3), next)
	assert.Equal(t, int64(1), got[0].Cursor)
	assert.Equal(t, int64(2), got[1].Cursor)
	assert.Equal(t, "site-a", got[0].SourceSiteID)

	got, _, err = h.Pull(ctx, "site-c", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, ids(got))

	got, next, err = h.Pull(ctx, "site-a", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "a site never receives its own records")
	assert.Equal(t, int64(3), next)
}

func TestPull_Paging(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	_, err := h.Push(ctx, "site-a", []wire.Record{
		rec("r1", 1, "", ""),
		rec("r2", 2, "store-a", "name-a"),
		rec("r3", 3, "", ""),
		rec("r4", 4, "", ""),
	})
	require.NoError(t, err)

	got, next, err := h.Pull(ctx, "site-b", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, ids(got))
	assert.Equal(t, int64(3), next)

	got, next, err = h.Pull(ctx, "site-b", next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"r4"}, ids(got))
	assert.Equal(t, int64(4), next)

	got, next, err = h.Pull(ctx, "site-b", next, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(4), next)
}

func TestPush_DeduplicatesResent(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	_, err := h.Push(ctx, "site-a", []wire.Record{rec("r1", 1, "", ""), rec("r2", 2, "", "")})
	require.NoError(t, err)
	ack, err := h.Push(ctx, "site-a", []wire.Record{rec("r2", 2, "", ""), rec("r3", 3, "", "")})
	require.NoError(t, err)

	assert.Equal(t, int64(3), ack)
	assert.Equal(t, int64(3), h.Ack("site-a"))
	assert.Equal(t, 3, h.Len())
}

func TestPushPull_Validation(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	_, err := h.Push(ctx, "site-x", []wire.Record{rec("r1", 1, "", "")})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = h.Push(ctx, "site-a", []wire.Record{{TableName: "item", Action: wire.ActionUpsert}})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	assert.Zero(t, h.Len())

	_, _, err = h.Pull(ctx, "site-a", -1, 10)
	assert.Error(t, err)
	_, _, err = h.Pull(ctx, "site-a", 0, 0)
	assert.Error(t, err)
}

func TestLocalPeer(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	ack, err := h.Local("site-a").Push(ctx, []wire.Record{rec("r1", 7, "", "")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ack)

	got, next, err := h.Local("site-b").Pull(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(got))
	assert.Equal(t, int64(1), next)
}
