// Package ratelimit spaces out requests to a fixed rate with optional jitter.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter hands out evenly spaced slots. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	next     time.Time
}

// NewLimiter creates a limiter allowing rps operations per second. Jitter
// randomizes each gap by up to +/- jitter*interval. rps <= 0 never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		interval: time.Duration(float64(time.Second) / rps),
		jitter:   min(max(jitter, 0), 1),
	}
}

// Interval is the nominal gap between slots.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the caller's slot arrives or ctx is done. The first call
// returns immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	delay := l.reserve(time.Now())
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve claims the next slot and returns how long until it starts.
func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.next
	if slot.Before(now) {
		slot = now
	}

	gap := l.interval
	if l.jitter > 0 {
		factor := rand.Float64()*2 - 1 // -1.0 to 1.0
		gap += time.Duration(float64(l.interval) * l.jitter * factor)
	}
	l.next = slot.Add(gap)

	return slot.Sub(now)
}

// Stop is a no-op kept so callers can defer it regardless of implementation.
func (l *Limiter) Stop() {}
