package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"creditgate/pkg/errors"
)

// RateLimiter defines the interface for rate limiting provider requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// RateLimitError is returned when a provider call is rejected by the
// local or distributed limiter before reaching the upstream API.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit for provider %s (%.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error { return errors.ErrRateLimitExceeded }

// LocalLimiter rate-limits within one process using a token bucket.
type LocalLimiter struct {
	limiter  *rate.Limiter
	perMin   float64
	provider ProviderName
}

// NewLocalLimiter creates an in-process token bucket limiter.
// reqPerMinute is the sustained rate; burst the momentary ceiling.
func NewLocalLimiter(provider ProviderName, reqPerMinute float64, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &LocalLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
		perMin:   reqPerMinute,
		provider: provider,
	}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter wait cancelled for provider %s", l.provider)
	}
	return nil
}

func (l *LocalLimiter) Allow() bool { return l.limiter.Allow() }

func (l *LocalLimiter) Limit() float64 { return l.perMin }

// NoOpLimiter never blocks. Used when rate limiting is disabled.
type NoOpLimiter struct{}

func NewNoOpLimiter() *NoOpLimiter { return &NoOpLimiter{} }

func (l *NoOpLimiter) Wait(context.Context) error { return nil }
func (l *NoOpLimiter) Allow() bool                { return true }
func (l *NoOpLimiter) Limit() float64             { return 0 }
