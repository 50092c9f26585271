// Copyright 2025 Joseph Cumines
//
// WebSocket client transport with fixed-delay reconnect

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/abu/internal/logging"
	"github.com/joeycumines/abu/internal/protocol"
)

// WSClientConfig holds configuration for the WebSocket client transport.
// URL is the server to dial (default: ws://127.0.0.1:9998/).
// ReconnectDelay is the fixed wait between dial attempts (default: 2s).
// ShutdownGrace bounds the wait for goroutines on Shutdown (default: 2s).
// Dialer defaults to a dialer with a 5s handshake timeout.
// MaxMessageSize bounds one inbound frame (default: 4 MiB). The peer is
// disconnected on a larger frame and the client redials.
type WSClientConfig struct {
	Logger         *zap.Logger
	Metrics        *Metrics
	Limiter        *RateLimiter
	Dialer         *websocket.Dialer
	URL            string
	ReconnectDelay time.Duration
	ShutdownGrace  time.Duration
	MaxMessageSize int64
}

// DefaultWSClientConfig returns default WebSocket client configuration
func DefaultWSClientConfig() *WSClientConfig {
	return &WSClientConfig{
		URL:            ClientURL(DefaultClientPort, "/"),
		ReconnectDelay: DefaultReconnectDelay,
		ShutdownGrace:  DefaultShutdownGrace,
		MaxMessageSize: maxMessageSize,
	}
}

// ClientURL returns the loopback WebSocket URL for port and path.
func ClientURL(port int, path string) string {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Path:   path,
	}
	return u.String()
}

// WSClient dials a controller's WebSocket server and exchanges one JSON text
// frame per command or response. When the connection drops it redials after
// a fixed delay, indefinitely, until Shutdown.
//
// Responses sent while disconnected stay queued and are delivered after the
// next successful dial.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type WSClient struct {
	config   *WSClientConfig
	logger   *zap.Logger
	queue    *CommandQueue
	in       inbound
	dialer   *websocket.Dialer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex // guards conn and outbound
	conn     *websocket.Conn
	outbound [][]byte
	wake     chan struct{}
	started  atomic.Bool
	closed   atomic.Bool
}

// NewWSClient creates a new WebSocket client transport
func NewWSClient(config *WSClientConfig) *WSClient {
	if config == nil {
		config = DefaultWSClientConfig()
	}
	if config.URL == "" {
		config.URL = ClientURL(DefaultClientPort, "/")
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = maxMessageSize
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}

	logger := logging.OrNop(config.Logger).Named("transport.ws")
	queue := &CommandQueue{}
	ctx, cancel := context.WithCancel(context.Background())

	return &WSClient{
		config: config,
		logger: logger,
		queue:  queue,
		in: inbound{
			queue:   queue,
			limiter: config.Limiter,
			metrics: config.Metrics,
			logger:  logger,
			name:    "ws",
		},
		dialer: dialer,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Name returns "ws".
func (c *WSClient) Name() string { return "ws" }

// Queue returns the inbound command queue.
func (c *WSClient) Queue() *CommandQueue { return c.queue }

// Connected reports whether a WebSocket connection is established.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Pending returns the number of responses waiting to be written.
func (c *WSClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbound)
}

// Start begins the dial loop. It does not wait for a connection.
func (c *WSClient) Start() error {
	if c.closed.Load() {
		return fmt.Errorf("transport is closed")
	}
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport already started")
	}
	c.wg.Add(1)
	go c.run()
	return nil
}

func (c *WSClient) run() {
	defer c.wg.Done()
	for attempt := 0; ; attempt++ {
		if c.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			c.in.metrics.IncReconnects()
		}

		conn, _, err := c.dialer.DialContext(c.ctx, c.config.URL, nil)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Debug("dial failed",
				zap.String("url", c.config.URL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		} else {
			c.serve(conn)
		}

		if !c.sleep(c.config.ReconnectDelay) {
			return
		}
	}
}

func (c *WSClient) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve runs the receive and send loops for one connection until either
// fails or the client shuts down.
func (c *WSClient) serve(conn *websocket.Conn) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	pending := len(c.outbound)
	c.mu.Unlock()

	conn.SetReadLimit(c.config.MaxMessageSize)
	c.in.metrics.SetConnected(c.Name(), true)
	c.logger.Info("connected", zap.String("url", c.config.URL))
	if pending > 0 {
		c.signal()
	}

	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error { return c.receiveLoop(conn) })
	g.Go(func() error { return c.sendLoop(ctx, conn) })
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	c.in.metrics.SetConnected(c.Name(), false)

	if c.ctx.Err() == nil {
		c.logger.Info("disconnected", zap.Error(err))
	}
}

func (c *WSClient) receiveLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if errors.Is(err, websocket.ErrReadLimit) {
			c.in.oversized(int(c.config.MaxMessageSize))
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		if resp, reply := c.in.accept(data); reply {
			c.Send(resp)
		}
	}
}

func (c *WSClient) sendLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
		for {
			data, ok := c.peek()
			if !ok {
				break
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			c.pop()
		}
	}
}

func (c *WSClient) peek() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbound) == 0 {
		return nil, false
	}
	return c.outbound[0], true
}

func (c *WSClient) pop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbound) > 0 {
		c.outbound[0] = nil
		c.outbound = c.outbound[1:]
	}
}

func (c *WSClient) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Send queues resp for the send loop. It never blocks on the network.
func (c *WSClient) Send(resp protocol.Response) {
	if c.closed.Load() {
		c.logger.Warn("transport closed, dropping response", zap.String("id", resp.ID))
		return
	}
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		c.logger.Error("dropping response", zap.String("id", resp.ID), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.outbound = append(c.outbound, data)
	c.mu.Unlock()
	c.signal()
}

// Shutdown stops dialing, closes the connection and waits up to the
// shutdown grace period for the I/O goroutines. Idempotent.
func (c *WSClient) Shutdown() {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("close failed", zap.Error(err))
		}
	}

	if !waitTimeout(&c.wg, c.config.ShutdownGrace) {
		c.logger.Warn("shutdown grace period elapsed with goroutines still running",
			zap.Duration("grace", c.config.ShutdownGrace),
		)
	}
}
