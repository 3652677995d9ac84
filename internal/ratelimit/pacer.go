// Package ratelimit provides the pacing and retry utilities used against
// rate-limited remote stores.
package ratelimit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Pacer is a token bucket that spreads bulk fetches out so they stay under a
// remote store's request throttle. A Pacer configured with burst b and
// interval d allows b immediate acquisitions, then refills at b tokens per d.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing burst requests per interval.
func NewPacer(burst int, interval time.Duration) *Pacer {
	if burst < 1 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	perToken := interval / time.Duration(burst)
	return &Pacer{limiter: rate.NewLimiter(rate.Every(perToken), burst)}
}

// Wait blocks until a token is available or the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// RetryTransient runs fn with capped exponential backoff, up to maxTries
// attempts. Errors matched by isPermanent stop the retry loop immediately;
// rate-limit responses belong there when the caller's policy is to omit the
// item instead of hammering the store.
func RetryTransient(ctx context.Context, maxTries uint, isPermanent func(error) bool, fn func() error) error {
	operation := func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if isPermanent != nil && isPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
	)
	return err
}
