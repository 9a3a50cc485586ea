package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"marketpulse/pkg/errors"
)

// Limiter paces calls to one upstream API
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter allows perSecond requests with a burst of at least one
func NewLimiter(name string, perSecond float64) *Limiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
