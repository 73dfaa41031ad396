// Package retry runs an operation with bounded, jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxAttempts         int           // total attempts including the first one
	InitialInterval     time.Duration // delay before the second attempt
	MaxInterval         time.Duration // cap for a single delay
	Multiplier          float64       // growth factor per attempt
	RandomizationFactor float64       // jitter, delay is picked from [d*(1-f), d*(1+f)]
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// NotifyFunc is called before sleeping for the next attempt.
type NotifyFunc func(attempt int, err error, next time.Duration)

// NonRetryable marks err so that Do returns it immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		c.RandomizationFactor = def.RandomizationFactor
	}
	return c
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.InitialInterval
	exp.MaxInterval = c.MaxInterval
	exp.Multiplier = c.Multiplier
	exp.RandomizationFactor = c.RandomizationFactor
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.MaxAttempts-1)), ctx)
}

// Do calls fn until it succeeds, returns a NonRetryable error, ctx ends, or the
// attempt budget is spent.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, notify NotifyFunc) error {
	cfg = cfg.normalize()
	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			notify(attempt, err, next)
		}
	}
	err := backoff.RetryNotify(op, cfg.backOff(ctx), onRetry)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("retry cancelled after %d attempts: %w: %w", attempt, ctxErr, err)
	}
	return fmt.Errorf("retry failed after %d attempts: %w", attempt, err)
}

func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error), notify NotifyFunc) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	}, notify)
	return result, err
}
