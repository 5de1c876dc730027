// Package retry provides a bounded retry primitive shared by components
// that populate caches or call flaky upstreams.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how many times an operation is attempted and how long
// to wait between attempts. The backoff is fixed, not exponential.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultPolicy mirrors the cache population behaviour: three attempts,
// two seconds apart.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 2 * time.Second}

// Do runs fn until it returns nil, the policy is exhausted, or ctx is
// cancelled. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
