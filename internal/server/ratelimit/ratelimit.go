// Package ratelimit provides per-client token bucket rate limiting for the
// control surface. Run triggers are expensive; a stuck dashboard refreshing
// in a loop must not be able to hammer them.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is one client's token bucket.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter tracks a token bucket per client ID.
type Limiter struct {
	capacity   int
	refillRate float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*bucket

	now func() time.Time
}

// NewLimiter allows capacity requests per window per client, refilling
// steadily over the window.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity:   capacity,
		refillRate: float64(capacity) / window.Seconds(),
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// Allow consumes one token for clientID. Returns false when the client is
// out of tokens.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), lastRefill: now}
		l.buckets[clientID] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.refillRate
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle longer than maxIdle. Called opportunistically by
// the server; there is no background goroutine to stop.
func (l *Limiter) Prune(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxIdle)
	for id, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
