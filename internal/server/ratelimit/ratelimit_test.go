package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToCapacity(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d within capacity", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "capacity exhausted")
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestLimiter_Refills(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	current := time.Now()
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow("c"))
	assert.True(t, l.Allow("c"))
	assert.False(t, l.Allow("c"))

	// Half the window restores one token.
	current = current.Add(30 * time.Second)
	assert.True(t, l.Allow("c"))
	assert.False(t, l.Allow("c"))
}

func TestLimiter_Prune(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("stale")
	current = current.Add(2 * time.Hour)
	l.Allow("fresh")
	l.Prune(time.Hour)

	l.mu.Lock()
	_, staleKept := l.buckets["stale"]
	_, freshKept := l.buckets["fresh"]
	l.mu.Unlock()
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}
