// Copyright 2025 Joseph Cumines

// Package history buffers human-readable history and effect-log entries
// produced by host observers until the bridge drains them into a response.
package history

import (
	"fmt"
	"sync"
)

// Recorder is a goroutine-safe append-only buffer of entries.
type Recorder struct {
	entries []string
	mu      sync.Mutex
}

// Append adds entries to the buffer.
func (r *Recorder) Append(entries ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
}

// Appendf adds one formatted entry.
func (r *Recorder) Appendf(format string, args ...any) {
	r.Append(fmt.Sprintf(format, args...))
}

// Take returns the buffered entries and clears the buffer. It returns nil
// when nothing was recorded.
func (r *Recorder) Take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	out := r.entries
	r.entries = nil
	return out
}

// Len returns the number of buffered entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Log pairs a game-history recorder with an effect-log recorder and serves
// as both the bridge's history provider and effect-log provider.
type Log struct {
	History Recorder
	Effects Recorder
}

// TakeHistory drains the history entries.
func (l *Log) TakeHistory() []string {
	return l.History.Take()
}

// TakeEffectLogs drains the effect-log entries.
func (l *Log) TakeEffectLogs() []string {
	return l.Effects.Take()
}
