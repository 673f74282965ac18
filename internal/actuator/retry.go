package actuator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/crosslight-io/crosslight/engine/internal/backoff"
)

// RetryConfig configures the token-bucket limiter and retry policy in front
// of a physical actuator.
type RetryConfig struct {
	// CommandsPerSecond is the sustained command rate toward the driver.
	CommandsPerSecond float64
	// Burst is the maximum burst above the sustained rate.
	Burst int
	// MaxRetries is the number of retry attempts per frame.
	MaxRetries int
	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible defaults for a 9600-baud serial driver.
var DefaultRetryConfig = RetryConfig{
	CommandsPerSecond: 20,
	Burst:             5,
	MaxRetries:        2,
	InitialBackoff:    50 * time.Millisecond,
	MaxBackoff:        500 * time.Millisecond,
}

// RetryingActuator wraps an Actuator with token-bucket pacing and retry.
// Serial drivers drop commands when flooded; pacing keeps the line usable.
type RetryingActuator struct {
	inner   Actuator
	limiter *rate.Limiter
	cfg     RetryConfig
	policy  backoff.Policy
}

// NewRetryingActuator wraps inner using cfg.
func NewRetryingActuator(inner Actuator, cfg RetryConfig) (*RetryingActuator, error) {
	if cfg.CommandsPerSecond <= 0 {
		return nil, fmt.Errorf("actuator retry: CommandsPerSecond must be > 0")
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("actuator retry: Burst must be > 0")
	}
	return &RetryingActuator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond), cfg.Burst),
		cfg:     cfg,
		policy:  backoff.Policy{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
	}, nil
}

// Apply waits for a token then applies the frame, retrying with exponential
// backoff on failure.
func (r *RetryingActuator) Apply(ctx context.Context, frame Frame) error {
	err := backoff.Retry(ctx, r.limiter, r.cfg.MaxRetries, r.policy, func() error {
		return r.inner.Apply(ctx, frame)
	})
	if err != nil {
		return fmt.Errorf("actuator retry: %w", err)
	}
	return nil
}
