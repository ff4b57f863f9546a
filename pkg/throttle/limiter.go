// Package throttle provides per-key rate limiting and retry with backoff.
//
// Limiter keeps one token bucket per key (an actor id, a channel id) so that
// one noisy caller cannot starve the rest:
//
//	lim := throttle.NewLimiter(2, 5)
//	if !lim.Allow(actorID) {
//	    return errSlowDown
//	}
//
// Retry wraps a flaky call with exponential backoff, honoring the limiter:
//
//	err := throttle.Retry(ctx, throttle.DefaultRetryConfig(), func() error {
//	    return send()
//	})
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter is a set of token buckets keyed by string. Thread-safe.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter creates a Limiter allowing perSecond events per key with the
// given burst. A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		limit:   limit,
		burst:   max(1, burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) get(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim, now
}

// Allow reports whether an event for key may happen now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	lim, now := l.get(key)
	return lim.AllowN(now, 1)
}

// Wait blocks until an event for key may happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	lim, _ := l.get(key)
	return lim.Wait(ctx)
}

// Forget drops the bucket for key.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Prune drops buckets not used for longer than idle and returns how many were removed.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	removed := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
