package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider caps how many completions per minute reach the
// underlying provider. Pipeline workers share one instance, so the cap is
// process-wide regardless of worker count.
type RateLimitedProvider struct {
	inner      Provider
	rpm        int
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewRateLimitedProvider wraps inner with a token bucket allowing at most
// rpm requests per minute.
func NewRateLimitedProvider(inner Provider, rpm int) Provider {
	return &RateLimitedProvider{
		inner:      inner,
		rpm:        rpm,
		tokens:     rpm,
		lastRefill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.inner.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, req)
}

// acquire blocks until a token is available or the context ends.
func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		refill := int(now.Sub(r.lastRefill).Seconds() * float64(r.rpm) / 60.0)
		if refill > 0 {
			r.tokens += refill
			if r.tokens > r.rpm {
				r.tokens = r.rpm
			}
			r.lastRefill = now
		}
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
