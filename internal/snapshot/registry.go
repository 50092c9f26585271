// Copyright 2025 Joseph Cumines
//
// Ref registry for interactive scene nodes

package snapshot

import (
	"strconv"
	"sync"
)

// RefPrefix is prepended to the registry counter to form a ref.
const RefPrefix = "e"

// Callbacks is the bundle of input handlers behind one ref. Any field may be
// nil when the element does not support that input.
type Callbacks struct {
	OnClick func()
	OnHover func()
	// OnDrag receives the target ref, or "" when the drag has no target.
	OnDrag func(target string)
}

// RefRegistry maps refs to callbacks for the nodes discovered during one
// walk. It is the only component that mints refs.
//
// Clear must be called once at the start of every walk; refs handed out
// before a Clear are no longer resolvable after it.
type RefRegistry struct {
	callbacks map[string]Callbacks
	next      int
	mu        sync.Mutex
}

// NewRefRegistry creates an empty registry whose first ref is "e1".
func NewRefRegistry() *RefRegistry {
	return &RefRegistry{
		callbacks: make(map[string]Callbacks),
		next:      1,
	}
}

// Register assigns the next ref to cb and returns it.
func (r *RefRegistry) Register(cb Callbacks) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := RefPrefix + strconv.Itoa(r.next)
	r.next++
	r.callbacks[ref] = cb
	return ref
}

// TryGetCallbacks looks up ref. The boolean is false for unknown or stale
// refs.
func (r *RefRegistry) TryGetCallbacks(ref string) (Callbacks, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.callbacks[ref]
	return cb, ok
}

// Clear drops every ref and resets the counter to 1.
func (r *RefRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.callbacks)
	r.next = 1
}

// Len returns the number of refs currently registered.
func (r *RefRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}
