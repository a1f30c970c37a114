package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrUnavailable marks a transient storage failure that survived every
// retry attempt. Callers surface it as a retryable "busy" condition.
var ErrUnavailable = errors.New("storage unavailable")

// Retrier retries transient storage errors with exponential backoff.
// Non-transient errors propagate immediately on the first attempt.
type Retrier struct {
	maxRetries uint64
	baseDelay  time.Duration
}

func NewRetrier(maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &Retrier{
		maxRetries: uint64(maxAttempts - 1),
		baseDelay:  baseDelay,
	}
}

// Do runs fn, retrying transient failures up to the configured bound.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && IsTransient(err) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
	}
	return err
}
