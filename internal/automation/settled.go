// Copyright 2025 Joseph Cumines
//
// Settled detection for dispatched inputs

package automation

import (
	"sync"
	"time"
)

const (
	// DefaultSettleFrames is the number of consecutive quiet polls required
	// before an action is considered settled.
	DefaultSettleFrames = 3

	// DefaultMaxWait bounds how long a single action may wait for settle.
	DefaultMaxWait = 10 * time.Second
)

// SettledProvider decides when the host has finished reacting to an input.
//
// NotifyActionDispatched is called right after an input callback has run;
// IsSettled is then polled once per tick until it returns true.
type SettledProvider interface {
	NotifyActionDispatched()
	IsSettled() bool
}

// TimeoutReporter is implemented by providers that can tell whether the most
// recent settle was forced by their maximum wait.
type TimeoutReporter interface {
	TimedOut() bool
}

// FrameSettledProvider is the default SettledProvider. An action settles
// once SettleFrames consecutive polls have seen no active busy token, or
// once MaxWait has elapsed since dispatch, whichever comes first.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type FrameSettledProvider struct {
	ctx          *Context
	clock        func() time.Time
	settleFrames int
	maxWait      time.Duration

	mu               sync.Mutex
	actionInProgress bool
	lastAction       time.Time
	framesRemaining  int
	timedOut         bool
}

// FrameSettledOption configures a FrameSettledProvider.
type FrameSettledOption func(*FrameSettledProvider)

// WithSettleFrames sets the number of quiet polls required. Values below 1
// are treated as 1.
func WithSettleFrames(n int) FrameSettledOption {
	return func(p *FrameSettledProvider) {
		if n < 1 {
			n = 1
		}
		p.settleFrames = n
	}
}

// WithMaxWait sets the settle safety valve. Non-positive values keep the
// default.
func WithMaxWait(d time.Duration) FrameSettledOption {
	return func(p *FrameSettledProvider) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// WithClock injects the time source, primarily for tests.
func WithClock(clock func() time.Time) FrameSettledOption {
	return func(p *FrameSettledProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewFrameSettledProvider creates the default settled provider bound to ctx.
func NewFrameSettledProvider(ctx *Context, opts ...FrameSettledOption) *FrameSettledProvider {
	p := &FrameSettledProvider{
		ctx:          ctx,
		clock:        time.Now,
		settleFrames: DefaultSettleFrames,
		maxWait:      DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NotifyActionDispatched resets tracking for a newly dispatched action.
func (p *FrameSettledProvider) NotifyActionDispatched() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.actionInProgress = true
	p.lastAction = p.clock()
	p.framesRemaining = p.settleFrames
	p.timedOut = false
}

// IsSettled performs one poll step.
func (p *FrameSettledProvider) IsSettled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.actionInProgress {
		return true
	}

	if p.clock().Sub(p.lastAction) >= p.maxWait {
		p.actionInProgress = false
		p.timedOut = true
		return true
	}

	if p.ctx != nil && p.ctx.IsAnyActive() {
		p.framesRemaining = p.settleFrames
		return false
	}

	p.framesRemaining--
	if p.framesRemaining <= 0 {
		p.actionInProgress = false
		return true
	}
	return false
}

// TimedOut reports whether the last settle was forced by MaxWait.
func (p *FrameSettledProvider) TimedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timedOut
}

var _ SettledProvider = (*FrameSettledProvider)(nil)
var _ TimeoutReporter = (*FrameSettledProvider)(nil)
