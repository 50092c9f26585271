// Copyright 2025 Joseph Cumines
//
// Inbound command queue shared by the I/O goroutines and the host thread

package transport

import (
	"sync"

	"github.com/joeycumines/abu/internal/protocol"
)

// CommandQueue is a goroutine-safe FIFO of inbound commands.
type CommandQueue struct {
	items []protocol.Command
	mu    sync.Mutex
}

// Push appends a command.
func (q *CommandQueue) Push(cmd protocol.Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
}

// TryPop removes and returns the oldest command without blocking.
func (q *CommandQueue) TryPop() (protocol.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return protocol.Command{}, false
	}
	cmd := q.items[0]
	q.items[0] = protocol.Command{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return cmd, true
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
