// Package politeness controls how gently the harvester treats the source
// site: randomized request headers, a human-like delay after every successful
// fetch, and a tiered retry schedule for failed ones.
package politeness

import (
	"math/rand"
	"time"
)

// userAgents is a small rotation of plausible browser identities.
var userAgents = []string{
	"Mozilla/5.0 (Linux; Android 13; SM-S901B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Policy holds the delay range and the retry table for one run. A policy is
// shared by every worker of the run, so all methods are safe for concurrent
// use: randomness comes from the lock-protected top-level rand functions.
type Policy struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	RetryDelays []time.Duration
	Referer     string
}

// New builds a policy. referer is sent on every request so page loads look
// like in-site navigation.
func New(minDelay, maxDelay time.Duration, retryDelays []time.Duration, referer string) *Policy {
	return &Policy{
		MinDelay:    minDelay,
		MaxDelay:    maxDelay,
		RetryDelays: retryDelays,
		Referer:     referer,
	}
}

// Headers returns a fresh header set with a randomized User-Agent.
func (p *Policy) Headers() map[string]string {
	return map[string]string{
		"User-Agent":                userAgents[rand.Intn(len(userAgents))],
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.8",
		"Connection":                "keep-alive",
		"Referer":                   p.Referer,
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}

// Delay returns a uniform random duration in [MinDelay, MaxDelay].
func (p *Policy) Delay() time.Duration {
	if p.MaxDelay <= p.MinDelay {
		return p.MinDelay
	}
	return p.MinDelay + time.Duration(rand.Int63n(int64(p.MaxDelay-p.MinDelay)))
}

// RetryDelay returns the delay to sleep before retry number attempt
// (zero-based). ok is false once the table is exhausted, meaning the fetch
// should be abandoned.
func (p *Policy) RetryDelay(attempt int) (delay time.Duration, ok bool) {
	if attempt < 0 || attempt >= len(p.RetryDelays) {
		return 0, false
	}
	return p.RetryDelays[attempt], true
}

// MaxRetries is the number of retries the table allows.
func (p *Policy) MaxRetries() int {
	return len(p.RetryDelays)
}
