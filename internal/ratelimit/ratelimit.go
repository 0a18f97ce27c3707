// Package ratelimit provides a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerMinute with a burst of 10% of it.
func New(requestsPerMinute int) *Limiter {
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return NewWithBurst(requestsPerMinute, burst)
}

// NewWithBurst creates a limiter with an explicit burst. A non-positive rate
// disables limiting.
func NewWithBurst(requestsPerMinute, burst int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Keyed holds one limiter per key, created on first use. Used to budget
// upstream calls per chain.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rpm      int
	burst    int
}

// NewKeyed creates a keyed limiter where every key gets rpm and burst.
func NewKeyed(requestsPerMinute, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*Limiter),
		rpm:      requestsPerMinute,
		burst:    burst,
	}
}

// Get returns the limiter for key.
func (k *Keyed) Get(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = NewWithBurst(k.rpm, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Wait blocks on the limiter for key.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.Get(key).Wait(ctx)
}
