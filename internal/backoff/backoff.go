// Package backoff is the shared retry loop for boundaries with quotas: a
// token-bucket limiter paces every attempt and an exponential delay
// separates retries.
package backoff

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Policy is an exponential backoff schedule.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the pause before retry attempt (1-based), doubling from
// Initial and capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Initial) * math.Pow(2, float64(attempt-1))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

// Retry runs fn up to maxRetries+1 times. Every attempt first takes a token
// from limiter; attempts after the first sleep the policy's delay. The first
// nil from fn wins.
func Retry(ctx context.Context, limiter *rate.Limiter, maxRetries int, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.Delay(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("cancelled during backoff: %w", ctx.Err())
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries, lastErr)
}
