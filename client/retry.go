package client

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an exponential backoff schedule.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns the default schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultBackoffMultiplier,
	}
}

// Backoff returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return backoff
}

// Do runs fn until it succeeds, the attempts run out, ctx ends, or
// retryable (when non-nil) rejects the error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return fmt.Errorf("operation cancelled: %w", err)
			}
			return fmt.Errorf("operation cancelled: %w", lastErr)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", lastErr)
		case <-time.After(p.Backoff(attempt)):
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}
