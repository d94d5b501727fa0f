package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/hub"
	"sitesync/internal/infrastructure/storage"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func field(t *testing.T, err error) any {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	return appErr.Details["field"]
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, storage.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Interval())
	assert.Equal(t, ":8090", cfg.Status.Addr)
	assert.Equal(t, ":8080", cfg.Hub.Addr)

	d := cfg.DriverConfig()
	assert.Equal(t, 500, d.BatchSize)
	assert.Equal(t, 3, d.RetryAttempts)
	assert.Equal(t, 10000, d.IntegrationLimit)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
site_id: site-a
storage:
  driver: postgres
  dsn: postgres://file
log:
  level: debug
sync:
  interval_seconds: 15
  batch_size: 50
  retry_initial_interval: 250ms
remote:
  url: http://hub:8080
  timeout: 5s
`)

	cfg, err := LoadWith(path, env(map[string]string{
		"SITESYNC_STORAGE_DSN":     "postgres://env",
		"SITESYNC_SYNC_BATCH_SIZE": "75",
		"SITESYNC_REMOTE_COMPRESS": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "site-a", cfg.SiteID)
	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://env", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.Interval())
	assert.Equal(t, 75, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts, "unset keys keep their default")
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.RetryInitialInterval)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Remote.Compress)
	require.NoError(t, cfg.RequireSites())
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = LoadWith(writeConfig(t, "sync: [not, a, map]"), env(nil))
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = LoadWith("", env(map[string]string{"SITESYNC_SYNC_BATCH_SIZE": "many"}))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "SITESYNC_SYNC_BATCH_SIZE", appErr.Details["env"])

	_, err = LoadWith("", env(map[string]string{"SITESYNC_REMOTE_TIMEOUT": "soon"}))
	assert.Error(t, err)

	_, err = LoadWith("", env(map[string]string{"SITESYNC_LOG_LEVEL": "chatty"}))
	assert.Equal(t, "log.level", field(t, err))

	_, err = LoadWith("", env(map[string]string{"SITESYNC_SYNC_INTERVAL_SECONDS": "0"}))
	assert.Equal(t, "sync.interval_seconds", field(t, err))
}

func TestValidate_HubClaims(t *testing.T) {
	cfg := Default()
	cfg.Hub.Sites = []hub.Site{
		{ID: "site-a", Names: []string{"n1"}},
		{ID: "site-b", Names: []string{"n1"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestRequireSites(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "site_id", field(t, cfg.RequireSites()))

	cfg.SiteID = "site-a"
	assert.Equal(t, "remote.url", field(t, cfg.RequireSites()))

	cfg.Hub.Sites = []hub.Site{{ID: "site-a"}, {ID: "site-b"}}
	require.NoError(t, cfg.RequireSites())

	cfg.Sites = []SiteConfig{{SiteID: "site-a"}, {SiteID: "site-a"}}
	assert.Equal(t, "sites.site_id", field(t, cfg.RequireSites()))

	cfg.Sites = []SiteConfig{{SiteID: "site-a"}, {SiteID: "site-b", Storage: storage.Config{Driver: storage.DriverPostgres}}}
	assert.Equal(t, "storage.dsn", field(t, cfg.RequireSites()))
}

func TestLocalSites_InheritStorage(t *testing.T) {
	cfg := Default()
	cfg.Storage = storage.Config{Driver: storage.DriverPostgres, DSN: "postgres://shared"}
	cfg.Sites = []SiteConfig{
		{SiteID: "site-a"},
		{SiteID: "site-b", Storage: storage.Config{Driver: storage.DriverMemory}},
	}

	sites := cfg.LocalSites()
	require.Len(t, sites, 2)
	assert.Equal(t, "postgres://shared", sites[0].Storage.DSN)
	assert.Equal(t, storage.DriverMemory, sites[1].Storage.Driver)
}

func TestRequireHub(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "hub.sites", field(t, cfg.RequireHub()))

	cfg.Hub.Sites = []hub.Site{{ID: "site-a"}}
	require.NoError(t, cfg.RequireHub())

	cfg.Hub.Addr = ""
	assert.Equal(t, "hub.addr", field(t, cfg.RequireHub()))
}
