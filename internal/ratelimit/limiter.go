// Package ratelimit throttles write requests per client.
package ratelimit

import (
	"sync"
	"time"

	"grimm.is/ipfeed/internal/clock"
)

// Limiter hands out a fixed number of tokens per key and window.
type Limiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// New returns a limiter allowing limit requests per window for each key.
// A limit of zero or less disables limiting.
func New(limit int, window time.Duration, clk clock.Clock) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		clock:   clock.OrReal(clk),
		buckets: make(map[string]*bucket),
	}
}

// Enabled reports whether the limiter rejects anything at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limit > 0 && l.window > 0
}

// Allow takes one token for key.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN takes n tokens for key, or none if fewer than n remain.
func (l *Limiter) AllowN(key string, n int) bool {
	if !l.Enabled() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.lastFill) >= l.window {
		b = &bucket{tokens: l.limit, lastFill: now}
		l.buckets[key] = b
	}
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// RetryAfter is the time until key's bucket refills.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if !l.Enabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	if d := l.window - l.clock.Since(b.lastFill); d > 0 {
		return d
	}
	return 0
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// CleanupExpired drops buckets whose window has passed and returns how many.
func (l *Limiter) CleanupExpired() int {
	if !l.Enabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	dropped := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastFill) >= l.window {
			delete(l.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
