// Package config loads the sitesync configuration: a YAML file overlaid by
// SITESYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"sitesync/internal/core/apperror"
	"sitesync/internal/hub"
	"sitesync/internal/infrastructure/storage"
	"sitesync/internal/sync/driver"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SITESYNC_"

// Config is the full configuration of syncd and synchub.
type Config struct {
	// SiteID and Storage describe a single local site. Sites, when set,
	// takes precedence.
	SiteID  string         `yaml:"site_id"`
	Storage storage.Config `yaml:"storage"`
	Sites   []SiteConfig   `yaml:"sites"`

	Log    LogConfig    `yaml:"log"`
	Sync   SyncConfig   `yaml:"sync"`
	Remote RemoteConfig `yaml:"remote"`
	Status StatusConfig `yaml:"status"`
	Hub    HubConfig    `yaml:"hub"`
}

// SiteConfig is one site served by this process. An empty storage driver
// inherits the top-level storage.
type SiteConfig struct {
	SiteID  string         `yaml:"site_id"`
	Storage storage.Config `yaml:"storage"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SyncConfig tunes the sync cycle.
type SyncConfig struct {
	IntervalSeconds      int           `yaml:"interval_seconds"`
	BatchSize            int           `yaml:"batch_size"`
	RetryAttempts        int           `yaml:"retry_attempts"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval"`
	IntegrationLimit     int           `yaml:"integration_limit"`
}

// RemoteConfig points at the central server. An empty URL runs an
// in-process hub built from Hub.Sites.
type RemoteConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Compress bool          `yaml:"compress"`
}

// StatusConfig configures the status HTTP endpoint of syncd. An empty
// address disables it.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// HubConfig configures synchub and the in-process hub.
type HubConfig struct {
	Addr  string     `yaml:"addr"`
	Sites []hub.Site `yaml:"sites"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	d := driver.DefaultConfig()
	return &Config{
		Storage: storage.Config{Driver: storage.DriverMemory},
		Log:     LogConfig{Level: "info"},
		Sync: SyncConfig{
			IntervalSeconds:      60,
			BatchSize:            d.BatchSize,
			RetryAttempts:        d.RetryAttempts,
			RetryInitialInterval: d.RetryInitialInterval,
			RetryMaxInterval:     d.RetryMaxInterval,
			IntegrationLimit:     d.IntegrationLimit,
		},
		Remote: RemoteConfig{Timeout: 30 * time.Second},
		Status: StatusConfig{Addr: ":8090"},
		Hub:    HubConfig{Addr: ":8080"},
	}
}

// Load reads path (when not empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.Getenv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, apperror.NewValidation(fmt.Sprintf("config file %s not found", path))
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperror.NewValidation("invalid config file").
				WithDetail("path", path).
				WithCause(err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	env := envReader{getenv: getenv}

	env.str("SITE_ID", &c.SiteID)
	env.str("LOG_LEVEL", &c.Log.Level)
	env.boolean("LOG_DEVELOPMENT", &c.Log.Development)
	env.str("STORAGE_DRIVER", &c.Storage.Driver)
	env.str("STORAGE_DSN", &c.Storage.DSN)
	env.boolean("STORAGE_MIGRATE", &c.Storage.Migrate)
	env.integer("SYNC_INTERVAL_SECONDS", &c.Sync.IntervalSeconds)
	env.integer("SYNC_BATCH_SIZE", &c.Sync.BatchSize)
	env.integer("SYNC_RETRY_ATTEMPTS", &c.Sync.RetryAttempts)
	env.integer("SYNC_INTEGRATION_LIMIT", &c.Sync.IntegrationLimit)
	env.str("REMOTE_URL", &c.Remote.URL)
	env.duration("REMOTE_TIMEOUT", &c.Remote.Timeout)
	env.boolean("REMOTE_COMPRESS", &c.Remote.Compress)
	env.str("STATUS_ADDR", &c.Status.Addr)
	env.str("HUB_ADDR", &c.Hub.Addr)

	return env.err
}

// envReader collects the first parse error so callers can apply every
// override in sequence.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, string, bool) {
	name := EnvPrefix + key
	v := e.getenv(name)
	return name, v, v != "" && e.err == nil
}

func (e *envReader) str(key string, dst *string) {
	if _, v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	name, v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = envError(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	name, v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = envError(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	name, v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = envError(name, v, err)
		return
	}
	*dst = d
}

func envError(name, value string, err error) error {
	return apperror.NewValidation(fmt.Sprintf("invalid value %q for %s", value, name)).
		WithDetail("env", name).
		WithCause(err)
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Sync.IntervalSeconds <= 0 {
		return invalid("sync.interval_seconds", "interval must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return invalid("sync.batch_size", "batch size must be positive")
	}
	if c.Sync.RetryAttempts <= 0 {
		return invalid("sync.retry_attempts", "retry attempts must be positive")
	}
	if c.Sync.RetryInitialInterval < 0 || c.Sync.RetryMaxInterval < 0 {
		return invalid("sync.retry_initial_interval", "retry intervals must not be negative")
	}
	if c.Remote.Timeout < 0 {
		return invalid("remote.timeout", "timeout must not be negative")
	}
	if _, err := hub.New(c.Hub.Sites, nil); err != nil {
		return err
	}
	return nil
}

// RequireSites checks the settings syncd needs: at least one uniquely named
// site with a valid storage, and a way to reach the central server.
func (c *Config) RequireSites() error {
	sites := c.LocalSites()
	if len(sites) == 0 {
		return invalid("site_id", "at least one site is required")
	}
	seen := make(map[string]bool, len(sites))
	for _, s := range sites {
		if s.SiteID == "" {
			return invalid("sites.site_id", "site id must not be empty")
		}
		if seen[s.SiteID] {
			return invalid("sites.site_id", fmt.Sprintf("site %q is configured twice", s.SiteID))
		}
		seen[s.SiteID] = true
		if err := s.Storage.Validate(); err != nil {
			return err
		}
	}
	if c.Remote.URL == "" && len(c.Hub.Sites) == 0 {
		return invalid("remote.url", "either remote.url or hub.sites is required")
	}
	return nil
}

// RequireHub checks the settings synchub needs.
func (c *Config) RequireHub() error {
	if c.Hub.Addr == "" {
		return invalid("hub.addr", "listen address is required")
	}
	if len(c.Hub.Sites) == 0 {
		return invalid("hub.sites", "at least one site is required")
	}
	return nil
}

// LocalSites returns the sites served by this process.
func (c *Config) LocalSites() []SiteConfig {
	if len(c.Sites) == 0 {
		if c.SiteID == "" {
			return nil
		}
		return []SiteConfig{{SiteID: c.SiteID, Storage: c.Storage}}
	}
	out := make([]SiteConfig, len(c.Sites))
	for i, s := range c.Sites {
		if s.Storage.Driver == "" {
			s.Storage = c.Storage
		}
		out[i] = s
	}
	return out
}

// Interval returns the cycle interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// DriverConfig returns the driver settings.
func (c *Config) DriverConfig() driver.Config {
	return driver.Config{
		BatchSize:            c.Sync.BatchSize,
		RetryAttempts:        c.Sync.RetryAttempts,
		RetryInitialInterval: c.Sync.RetryInitialInterval,
		RetryMaxInterval:     c.Sync.RetryMaxInterval,
		IntegrationLimit:     c.Sync.IntegrationLimit,
	}
}

func invalid(field, message string) error {
	return apperror.NewValidation(message).WithDetail("field", field)
}
