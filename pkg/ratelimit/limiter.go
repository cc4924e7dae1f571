// Package ratelimit guards the shared Gemini API quota. A single Limiter is
// constructed in main and handed to every component that talks to the API.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter combines a token bucket (requests per minute) with a bounded
// in-flight counter (max concurrent calls). Acquire never blocks; callers
// that can afford to wait use WaitForAvailability.
type Limiter struct {
	requestsPerMinute int
	maxConcurrent     int

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	inFlight   int

	now   func() time.Time
	sleep func(time.Duration)
}

// Option overrides Limiter internals, mainly so tests can run on a
// deterministic clock.
type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

func NewLimiter(requestsPerMinute, maxConcurrent int, opts ...Option) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 950
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 15
	}
	l := &Limiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		tokens:            float64(requestsPerMinute),
		now:               time.Now,
		sleep:             time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.now()
	return l
}

// Acquire takes one token and one concurrency slot. It returns false
// immediately if either is unavailable. Tokens refill continuously in
// proportion to elapsed time; they are never returned on release.
func (l *Limiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * float64(l.requestsPerMinute) / 60
		if l.tokens > float64(l.requestsPerMinute) {
			l.tokens = float64(l.requestsPerMinute)
		}
		l.lastRefill = now
	}

	if l.tokens < 1 {
		return false
	}
	if l.inFlight >= l.maxConcurrent {
		return false
	}

	l.tokens--
	l.inFlight++
	return true
}

// Release frees the concurrency slot taken by a successful Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
}

// WaitForAvailability polls Acquire once per second until it succeeds or the
// timeout elapses. Returns false on timeout.
func (l *Limiter) WaitForAvailability(timeout time.Duration) bool {
	deadline := l.now().Add(timeout)
	for {
		if l.Acquire() {
			return true
		}
		if !l.now().Before(deadline) {
			return false
		}
		l.sleep(time.Second)
	}
}
