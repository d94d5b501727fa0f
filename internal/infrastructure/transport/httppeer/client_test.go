package httppeer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/hub"
	v1 "sitesync/internal/infrastructure/http/v1"
	"sitesync/internal/sync/wire"
	"sitesync/pkg/logger"
)

func newHubServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	h, err := hub.New([]hub.Site{{ID: "site-a"}, {ID: "site-b"}}, logger.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(v1.NewRouter(v1.RouterConfig{
		App:    "synchub",
		Logger: logger.NewNop(),
		Hub:    h,
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func newClient(t *testing.T, baseURL, siteID string, compress bool) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, SiteID: siteID, Timeout: 5 * time.Second, Compress: compress}, nil)
	require.NoError(t, err)
	return c
}

func records() []wire.Record {
	return []wire.Record{
		{TableName: "name", RecordID: "n1", Action: wire.ActionUpsert, Data: []byte(`{"ID":"n1","name":"Clinic"}`), Cursor: 1},
		{TableName: "item", RecordID: "i1", Action: wire.ActionDelete, Cursor: 2},
	}
}

func TestClient_PushPull(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h, srv := newHubServer(t)
			a := newClient(t, srv.URL, "site-a", compress)
			b := newClient(t, srv.URL+"/", "site-b", compress)

			ack, err := a.Push(ctx, records())
			require.NoError(t, err)
			assert.Equal(t, int64(2), ack)
			assert.Equal(t, 2, h.Len())

			got, next, err := b.Pull(ctx, 0, 10)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, int64(2), next)
			assert.Equal(t, "site-a", got[0].SourceSiteID)
			assert.JSONEq(t, `{"ID":"n1","name":"Clinic"}`, string(got[0].Data))
			assert.Equal(t, wire.ActionDelete, got[1].Action)

			got, next, err = a.Pull(ctx, 0, 10)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Equal(t, int64(2), next)
		})
	}
}

func TestClient_UnknownSiteIsValidationError(t *testing.T) {
	_, srv := newHubServer(t)
	c := newClient(t, srv.URL, "site-x", false)

	_, err := c.Push(context.Background(), records())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "site-x")
}

func TestClient_ServerErrorIsTransportError(t *testing.T) {
	var gotSite string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSite = r.Header.Get(HeaderSiteID)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, "site-a", false)
	_, _, err := c.Pull(context.Background(), 0, 10)
	require.Error(t, err)
	assert.True(t, apperror.IsTransport(err))
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, "site-a", gotSite)
}

func TestClient_NetworkErrorIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, "site-a", false)
	_, err := c.Push(context.Background(), records())
	assert.True(t, apperror.IsTransport(err))
}

func TestClient_MalformedAnswerIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy login</html>"))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, "site-a", false)
	_, err := c.Push(context.Background(), records())
	assert.True(t, apperror.IsTransport(err))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url", SiteID: "site-a"}, nil)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = New(Config{BaseURL: "http://hub:8080"}, nil)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	c, err := New(Config{BaseURL: "http://hub:8080/api/", SiteID: "site-a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://hub:8080/api/sync/v1/pull", c.endpoint(PullPath, nil))
	assert.Equal(t, 30*time.Second, c.http.Timeout)
}
