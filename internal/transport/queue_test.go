// Copyright 2025 Joseph Cumines
//
// Command queue tests

package transport

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/abu/internal/protocol"
)

func TestCommandQueue_FIFO(t *testing.T) {
	var q CommandQueue
	_, ok := q.TryPop()
	assert.False(t, ok)

	q.Push(protocol.Command{ID: "1"})
	q.Push(protocol.Command{ID: "2"})
	assert.Equal(t, 2, q.Len())

	cmd, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "1", cmd.ID)
	cmd, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "2", cmd.ID)
	_, ok = q.TryPop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestCommandQueue_ConcurrentPush(t *testing.T) {
	var q CommandQueue
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(protocol.Command{ID: fmt.Sprint(i)})
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for {
		cmd, ok := q.TryPop()
		if !ok {
			break
		}
		seen[cmd.ID] = true
	}
	assert.Len(t, seen, 50)
}
