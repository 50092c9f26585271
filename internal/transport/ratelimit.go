// Copyright 2025 Joseph Cumines
//
// Token bucket admission control for inbound commands

package transport

import (
	"math"
	"sync"
	"time"
)

// RateLimiter admits inbound commands from a token bucket refilled at a
// fixed rate. A command arriving with the bucket empty is answered
// immediately with a failure and never reaches the queue.
//
// A nil *RateLimiter admits everything.
type RateLimiter struct {
	clock   func() time.Time
	refill  time.Time // last refill
	perSec  float64
	burst   float64
	balance float64
	mu      sync.Mutex
}

// NewRateLimiter returns a limiter admitting commandsPerSecond with a burst
// of twice that (at least one). It returns nil, meaning unlimited, when
// commandsPerSecond is not positive.
func NewRateLimiter(commandsPerSecond float64) *RateLimiter {
	return NewRateLimiterWithClock(commandsPerSecond, time.Now)
}

// NewRateLimiterWithClock is NewRateLimiter with an injectable clock.
func NewRateLimiterWithClock(commandsPerSecond float64, clock func() time.Time) *RateLimiter {
	if commandsPerSecond <= 0 {
		return nil
	}
	burst := math.Max(commandsPerSecond*2, 1)
	return &RateLimiter{
		clock:   clock,
		refill:  clock(),
		perSec:  commandsPerSecond,
		burst:   burst,
		balance: burst,
	}
}

// Admit consumes a token if one is available. When it is not, Admit
// reports how long until the next token accrues.
func (r *RateLimiter) Admit() (retryAfter time.Duration, ok bool) {
	if r == nil {
		return 0, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.balance = math.Min(r.burst, r.balance+now.Sub(r.refill).Seconds()*r.perSec)
	r.refill = now

	if r.balance >= 1 {
		r.balance--
		return 0, true
	}
	missing := 1 - r.balance
	return time.Duration(math.Ceil(missing / r.perSec * float64(time.Second))), false
}

// Allow reports whether a command is admitted, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	_, ok := r.Admit()
	return ok
}

// Tokens returns the current token balance, or -1 for a nil limiter.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance
}
