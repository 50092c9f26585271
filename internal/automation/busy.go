// Copyright 2025 Joseph Cumines
//
// Busy tokens and the automation context

// Package automation holds the process-wide automation state shared between
// the host application and the bridge: the busy-token counter and the
// settled detection that consults it.
package automation

import (
	"sync/atomic"
)

// Context is the automation context constructed at bridge startup.
//
// It owns the busy-token counter. Host code that starts a multi-step
// asynchronous operation acquires a token from the context for the duration
// of the operation, so a SettledProvider never reports "settled" mid-way.
type Context struct {
	active atomic.Int64
}

// NewContext creates an automation context with no active busy tokens.
func NewContext() *Context {
	return &Context{}
}

// BusyToken marks one operation in flight. Dispose releases it.
type BusyToken struct {
	ctx      *Context
	disposed atomic.Bool
}

// Busy acquires a new busy token, incrementing the active count.
func (c *Context) Busy() *BusyToken {
	c.active.Add(1)
	return &BusyToken{ctx: c}
}

// Dispose releases the token. Only the first call decrements the active
// count; later calls are no-ops.
func (t *BusyToken) Dispose() {
	if t == nil {
		return
	}
	if t.disposed.CompareAndSwap(false, true) {
		t.ctx.active.Add(-1)
	}
}

// Disposed reports whether Dispose has been called.
func (t *BusyToken) Disposed() bool {
	return t != nil && t.disposed.Load()
}

// Hold runs fn while holding a busy token. The token is disposed on every
// exit path, including a panic in fn.
func (c *Context) Hold(fn func() error) error {
	token := c.Busy()
	defer token.Dispose()
	return fn()
}

// IsAnyActive reports whether at least one busy token is outstanding.
func (c *Context) IsAnyActive() bool {
	return c.active.Load() > 0
}

// ActiveCount returns the number of outstanding busy tokens.
func (c *Context) ActiveCount() int64 {
	return c.active.Load()
}
