package driver

import "time"

// Config tunes a sync cycle.
type Config struct {
	// BatchSize is the maximum number of records per push or pull page
	BatchSize int
	// RetryAttempts is the maximum number of attempts per network call
	RetryAttempts        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// IntegrationLimit caps the records integrated per cycle
	IntegrationLimit int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            500,
		RetryAttempts:        3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		IntegrationLimit:     10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = d.RetryInitialInterval
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = d.RetryMaxInterval
	}
	if c.IntegrationLimit <= 0 {
		c.IntegrationLimit = d.IntegrationLimit
	}
	return c
}
