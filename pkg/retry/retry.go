// Package retry implements exponential backoff for transient backend
// failures. Only errors in the backend category are retried; validation,
// existence, conflict, and closed-resource errors are permanent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	dferr "github.com/driftfs/driftfs/pkg/errors"
)

// Config defines retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the delay after each retry.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter randomizes each delay by up to ±20% to spread out
	// simultaneous retriers.
	Jitter bool `yaml:"jitter"`

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes operations with exponential backoff.
type Retryer struct {
	config Config
}

// New creates a Retryer, filling zero config fields with defaults.
func New(config Config) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return &Retryer{config: config}
}

// Do executes fn, retrying transient failures until it succeeds, returns
// a permanent error, the attempts are exhausted, or ctx is done.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("operation canceled: %w", err)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) || attempt == r.config.MaxAttempts {
			break
		}
		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

// Retryable reports whether an error may succeed on a later attempt.
// Errors carrying a driftfs code are retried only in the backend
// category; errors without a code are assumed transient transport
// failures.
func Retryable(err error) bool {
	var e *dferr.Error
	if !errors.As(err, &e) {
		return true
	}
	return e.Category() == dferr.CategoryBackend
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		d += d * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
