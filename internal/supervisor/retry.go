package supervisor

import (
	"context"
	"errors"
	"time"
)

// maxBackoff bounds the doubling so large attempt counts cannot overflow.
const maxBackoff = 10 * time.Minute

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxAttempts  int           // RETRY_MAX_ATTEMPTS (default 3)
	InitialDelay time.Duration // RETRY_INITIAL_DELAY (default 1s)
}

// Retryer runs a single operation with exponential backoff: after failed
// attempt i (0-indexed) it waits InitialDelay * 2^i before the next one.
// There is no jitter; doubling stops once the wait reaches maxBackoff.
type Retryer struct {
	cfg     RetryConfig
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a new Retryer with the given configuration.
// metrics may be nil.
func NewRetryer(cfg RetryConfig, metrics *Metrics) *Retryer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Retryer{
		cfg:     cfg,
		metrics: metrics,
		sleep:   sleepCtx,
	}
}

// Config returns the effective configuration.
func (r *Retryer) Config() RetryConfig {
	return r.cfg
}

// Backoff returns the wait after failed attempt i (0-indexed).
func (r *Retryer) Backoff(attempt int) time.Duration {
	d := r.cfg.InitialDelay
	for i := 0; i < attempt && d > 0 && d < maxBackoff; i++ {
		d *= 2
	}
	return d
}

// Do runs op until it succeeds or MaxAttempts is exhausted. It returns the
// value, the number of attempts made, and on exhaustion the final attempt's
// error unchanged.
//
// Cancelling ctx stops the loop at the next backoff wait; the returned error
// then wraps both ctx.Err() and the last attempt's error.
func Do[T any](ctx context.Context, r *Retryer, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 && r.metrics != nil {
			r.metrics.RecordRetry()
		}

		v, err := op(ctx)
		if err == nil {
			return v, attempt + 1, nil
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		// Wait before retry
		if serr := r.sleep(ctx, r.Backoff(attempt)); serr != nil {
			return zero, attempt + 1, errors.Join(serr, lastErr)
		}
	}

	return zero, r.cfg.MaxAttempts, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
