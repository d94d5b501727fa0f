package driver

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"sitesync/internal/core/apperror"
)

// retry runs op with exponential backoff. Only TRANSPORT_ERROR results are
// retried; anything else stops immediately.
func retry[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cfg.RetryInitialInterval),
		backoff.WithMaxInterval(cfg.RetryMaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	boff := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !apperror.IsTransport(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, boff)
}
