package detect

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/crosslight-io/crosslight/engine/internal/backoff"
)

// LimiterConfig configures the token-bucket limiter in front of the
// detection service.
type LimiterConfig struct {
	// RequestsPerMinute is the sustained request rate.
	RequestsPerMinute float64
	// Burst is the maximum burst size above the sustained rate.
	Burst int
	// MaxRetries is the number of retry attempts on transient failures.
	MaxRetries int
	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
}

// DefaultLimiterConfig returns sensible defaults for a hosted inference API.
var DefaultLimiterConfig = LimiterConfig{
	RequestsPerMinute: 120,
	Burst:             10,
	MaxRetries:        3,
	InitialBackoff:    250 * time.Millisecond,
	MaxBackoff:        10 * time.Second,
}

// RateLimitedDetector wraps a Detector with token-bucket rate limiting and
// retry, so four camera feeds cannot flood the shared detection quota.
type RateLimitedDetector struct {
	inner   Detector
	limiter *rate.Limiter
	cfg     LimiterConfig
	policy  backoff.Policy
}

// NewRateLimitedDetector wraps inner with rate limiting using cfg.
func NewRateLimitedDetector(inner Detector, cfg LimiterConfig) (*RateLimitedDetector, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("detect limiter: RequestsPerMinute must be > 0")
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("detect limiter: Burst must be > 0")
	}

	perSecond := rate.Limit(cfg.RequestsPerMinute / 60.0)
	return &RateLimitedDetector{
		inner:   inner,
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
		cfg:     cfg,
		policy:  backoff.Policy{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
	}, nil
}

// Name delegates to the inner detector.
func (r *RateLimitedDetector) Name() string { return r.inner.Name() }

// Detect waits for a rate limit token then calls the inner detector. On
// failure it retries with exponential backoff up to MaxRetries.
func (r *RateLimitedDetector) Detect(ctx context.Context, imageB64 string) (*Result, error) {
	var res *Result
	err := backoff.Retry(ctx, r.limiter, r.cfg.MaxRetries, r.policy, func() error {
		out, err := r.inner.Detect(ctx, imageB64)
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("detect limiter: %w", err)
	}
	return res, nil
}
