// Copyright 2025 Joseph Cumines
//
// TCP listener transport for NDJSON commands

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/logging"
	"github.com/joeycumines/abu/internal/protocol"
)

// ListenerConfig holds configuration for the TCP listener transport.
// Address is the listen address (default: 127.0.0.1:9999).
// ShutdownGrace bounds the wait for goroutines on Shutdown (default: 2s).
// MaxMessageSize bounds one inbound line (default: 4 MiB); longer lines
// are discarded through their newline.
// Limiter, Metrics and Logger are optional.
type ListenerConfig struct {
	Logger         *zap.Logger
	Metrics        *Metrics
	Limiter        *RateLimiter
	Address        string
	ShutdownGrace  time.Duration
	MaxMessageSize int
}

// DefaultListenerConfig returns default listener configuration
func DefaultListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		Address:        LoopbackAddress(DefaultListenPort),
		ShutdownGrace:  DefaultShutdownGrace,
		MaxMessageSize: maxMessageSize,
	}
}

// LoopbackAddress returns the 127.0.0.1 address for port.
func LoopbackAddress(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// TCPListener serves NDJSON commands over TCP, one command per line.
//
// Only the most recent connection is served: accepting a new connection
// closes the previous one. Responses are written to that connection by its
// own writer goroutine, so Send never waits on the socket.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type TCPListener struct {
	config   *ListenerConfig
	logger   *zap.Logger
	queue    *CommandQueue
	in       inbound
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex // guards listener and conn
	listener net.Listener
	conn     *connection
	started  atomic.Bool
	closed   atomic.Bool
}

// NewTCPListener creates a new TCP listener transport
func NewTCPListener(config *ListenerConfig) *TCPListener {
	if config == nil {
		config = DefaultListenerConfig()
	}
	if config.Address == "" {
		config.Address = LoopbackAddress(DefaultListenPort)
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = maxMessageSize
	}

	logger := logging.OrNop(config.Logger).Named("transport.tcp")
	queue := &CommandQueue{}
	ctx, cancel := context.WithCancel(context.Background())

	return &TCPListener{
		config: config,
		logger: logger,
		queue:  queue,
		in: inbound{
			queue:   queue,
			limiter: config.Limiter,
			metrics: config.Metrics,
			logger:  logger,
			name:    "tcp",
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Name returns "tcp".
func (t *TCPListener) Name() string { return "tcp" }

// Queue returns the inbound command queue.
func (t *TCPListener) Queue() *CommandQueue { return t.queue }

// Start binds the listen address and begins accepting connections.
func (t *TCPListener) Start() error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport already started")
	}

	ln, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		t.started.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", t.config.Address, err)
	}

	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("transport is closed")
	}
	t.listener = ln
	t.mu.Unlock()

	t.logger.Info("listening", zap.String("address", ln.Addr().String()))

	t.wg.Add(1)
	go t.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (t *TCPListener) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Connected reports whether a controller connection is attached.
func (t *TCPListener) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *TCPListener) acceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn("accept failed", zap.Error(err))
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		c := newConnection(conn)
		if !t.attach(c) {
			return
		}
		t.wg.Add(2)
		go t.writeLoop(c)
		go t.readLoop(c)
	}
}

// attach makes c the active connection, closing any previous one.
func (t *TCPListener) attach(c *connection) bool {
	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		_ = c.conn.Close()
		return false
	}
	previous := t.conn
	t.conn = c
	t.mu.Unlock()

	if previous != nil {
		t.logger.Info("replacing previous connection",
			zap.String("previous", previous.conn.RemoteAddr().String()),
		)
		closeQuietly(t.logger, previous.conn)
	}
	t.in.metrics.SetConnected(t.Name(), true)
	t.logger.Info("client connected", zap.String("remote", c.conn.RemoteAddr().String()))
	return true
}

func (t *TCPListener) detach(c *connection) {
	t.mu.Lock()
	active := t.conn == c
	if active {
		t.conn = nil
	}
	t.mu.Unlock()

	c.stop()
	closeQuietly(t.logger, c.conn)
	if active {
		t.in.metrics.SetConnected(t.Name(), false)
		t.logger.Info("client disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
	}
}

func (t *TCPListener) readLoop(c *connection) {
	defer t.wg.Done()
	defer t.detach(c)

	reader := bufio.NewReaderSize(c.conn, 64*1024)
	for {
		line, size, err := readLine(reader, t.config.MaxMessageSize)
		switch {
		case size > t.config.MaxMessageSize:
			t.in.oversized(t.config.MaxMessageSize)
		case len(line) > 0:
			if resp, reply := t.in.accept(line); reply {
				t.writeTo(c, resp)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && t.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				t.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
	}
}

// readLine reads through the next newline. It returns the line and its
// size; when size exceeds limit the bytes are discarded and line is nil.
func readLine(r *bufio.Reader, limit int) ([]byte, int, error) {
	var line []byte
	size := 0
	for {
		chunk, err := r.ReadSlice('\n')
		size += len(chunk)
		if size <= limit {
			line = append(line, chunk...)
		} else {
			line = nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, size, err
		}
	}
}

// writeLoop writes queued responses to c until it is detached. A failed
// write closes the connection.
func (t *TCPListener) writeLoop(c *connection) {
	defer t.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(data); err != nil {
				if t.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
					t.logger.Warn("failed to write response", zap.Error(err))
				}
				closeQuietly(t.logger, c.conn)
				return
			}
		}
	}
}

// Send queues resp for the active connection. With no client connected,
// or with the client's outbound buffer full, the response is dropped.
func (t *TCPListener) Send(resp protocol.Response) {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()

	if c == nil {
		t.logger.Warn("no client connected, dropping response", zap.String("id", resp.ID))
		return
	}
	t.writeTo(c, resp)
}

func (t *TCPListener) writeTo(c *connection, resp protocol.Response) {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		t.logger.Error("dropping response", zap.String("id", resp.ID), zap.Error(err))
		return
	}
	if !c.enqueue(append(data, '\n')) {
		t.logger.Warn("client not reading, dropping response",
			zap.String("id", resp.ID),
			zap.String("remote", c.conn.RemoteAddr().String()),
		)
	}
}

// connection is one accepted client and its outbound buffer.
type connection struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newConnection(conn net.Conn) *connection {
	return &connection{
		conn: conn,
		out:  make(chan []byte, outboundBuffer),
		done: make(chan struct{}),
	}
}

// enqueue buffers data for the writer without blocking. It reports false
// when the buffer is full or the connection is gone.
func (c *connection) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *connection) stop() {
	c.once.Do(func() { close(c.done) })
}

// Shutdown closes the listener and the active connection, then waits up to
// the shutdown grace period for the I/O goroutines. Idempotent.
func (t *TCPListener) Shutdown() {
	if t.closed.Swap(true) {
		return
	}
	t.cancel()

	t.mu.Lock()
	ln, conn := t.listener, t.conn
	t.listener, t.conn = nil, nil
	t.mu.Unlock()

	if ln != nil {
		closeQuietly(t.logger, ln)
	}
	if conn != nil {
		conn.stop()
		closeQuietly(t.logger, conn.conn)
		t.in.metrics.SetConnected(t.Name(), false)
	}

	if !waitTimeout(&t.wg, t.config.ShutdownGrace) {
		t.logger.Warn("shutdown grace period elapsed with goroutines still running",
			zap.Duration("grace", t.config.ShutdownGrace),
		)
	}
}

type closer interface{ Close() error }

func closeQuietly(logger *zap.Logger, c closer) {
	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Debug("close failed", zap.Error(err))
	}
}

// waitTimeout waits for wg, returning false if timeout elapses first.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
