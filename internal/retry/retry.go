// Package retry holds the single adapter-level retry policy applied to
// rate-limited AI calls. Pipeline-level whole-job retry is separate and
// lives in the pipeline executor.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMaxAttempts is returned when a policy is configured with no attempts.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// RateLimitError marks a failure caused by provider throttling. Adapters
// return it (via errors.As) so the policy knows the call is worth repeating.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Policy retries rate-limited operations with exponential backoff.
// Non-rate-limit errors fail immediately; those are the whole-job retry's
// responsibility.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do runs op, repeating it on rate-limit errors up to MaxAttempts with
// delays of BaseDelay * 2^(attempt-1). The last error is returned when all
// attempts fail.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsRateLimit(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
