// Copyright 2025 Joseph Cumines

// Package transport moves NDJSON commands and responses between an external
// controller and the host's bridge.
//
// All socket I/O happens on background goroutines. Inbound commands are
// handed to the host thread through a CommandQueue, which the bridge drains
// once per tick. Responses go out through Send, which never blocks on a
// socket.
package transport

import (
	"time"

	"github.com/joeycumines/abu/internal/protocol"
)

const (
	// DefaultListenPort is the TCP listener port used when none is configured.
	DefaultListenPort = 9999

	// DefaultClientPort is the WebSocket client port used when none is configured.
	DefaultClientPort = 9998

	// DefaultShutdownGrace bounds how long Shutdown waits for goroutines.
	DefaultShutdownGrace = 2 * time.Second

	// DefaultReconnectDelay is the fixed delay between WebSocket dial attempts.
	DefaultReconnectDelay = 2 * time.Second

	// writeTimeout bounds every socket write.
	writeTimeout = 5 * time.Second

	// maxMessageSize is the default bound on a single inbound line or frame.
	maxMessageSize = 4 << 20

	// outboundBuffer is how many responses may wait for a slow client
	// before further responses are dropped.
	outboundBuffer = 64
)

// Transport defines the interface between the bridge and the network.
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// There are two implementations:
//   - TCPListener: listens on loopback and serves the most recent connection
//   - WSClient: dials a WebSocket server and reconnects forever
//
// Error handling:
//   - Malformed inbound messages are logged and skipped
//   - Write failures are logged and the response is dropped
//   - Nothing here terminates the host process
type Transport interface {
	// Start begins background I/O. It returns an error only if the transport
	// cannot begin (for example, the listen port is taken).
	Start() error

	// Send delivers a response to the connected controller. Safe from any
	// goroutine. With nothing connected the response is dropped.
	Send(resp protocol.Response)

	// Shutdown stops background I/O, waiting at most the configured grace
	// period for goroutines to exit. Idempotent.
	Shutdown()

	// Queue returns the inbound command queue.
	Queue() *CommandQueue
}

// Status describes a transport's connection state for health reporting.
type Status interface {
	// Name identifies the transport kind, "tcp" or "ws".
	Name() string

	// Connected reports whether a controller is currently attached.
	Connected() bool
}

var (
	_ Transport = (*TCPListener)(nil)
	_ Transport = (*WSClient)(nil)
	_ Status    = (*TCPListener)(nil)
	_ Status    = (*WSClient)(nil)
)
