package analysis

import (
	"context"
	"log/slog"
	"time"
)

// Retryer wraps an operation in bounded exponential-backoff retry, applied
// only to errors IsRetryable classifies as transient. Zero-value fields take
// the defaults below.
type Retryer struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // default 2s, doubled each attempt
	MaxDelay    time.Duration // default 30s cap
	Log         *slog.Logger
}

// Do runs fn up to MaxAttempts times. Non-retryable errors propagate on first
// occurrence; after exhausting all attempts the last retryable error is
// returned unchanged so callers see the true root cause. The backoff sleep
// respects ctx cancellation.
func (r Retryer) Do(ctx context.Context, op string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := r.BaseDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt < attempts {
			delay := base << uint(attempt-1)
			if delay > maxDelay {
				delay = maxDelay
			}
			log.Warn("retrying",
				"op", op,
				"attempt", attempt,
				"max_attempts", attempts,
				"delay_ms", delay.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
