// Copyright 2025 Joseph Cumines

// Package bridge dispatches queued automation commands on the host thread.
//
// The host calls Bridge.Tick once per frame. Tick drains the transport's
// command queue, hands each command to the handler and forwards responses
// back through the transport. At most one command is in flight at a time.
package bridge

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/logging"
	"github.com/joeycumines/abu/internal/protocol"
	"github.com/joeycumines/abu/internal/snapshot"
	"github.com/joeycumines/abu/internal/transport"
)

// Config holds the bridge's collaborators.
// Transport is required. Automation is the context whose busy tokens hold
// settle detection open (default: a new context). SettleFrames and
// SettleTimeout configure the default settled provider. Logger, Metrics,
// Audit and Clock are optional.
type Config struct {
	Transport     transport.Transport
	Automation    *automation.Context
	Logger        *zap.Logger
	Metrics       *transport.Metrics
	Audit         *logging.AuditLogger
	Clock         func() time.Time
	SettleFrames  int
	SettleTimeout time.Duration
}

// Bridge is the command dispatcher. All methods except Close must be called
// from the host thread.
type Bridge struct {
	config    *Config
	transport transport.Transport
	logger    *zap.Logger
	clock     func() time.Time
	handler   CommandHandler
	snapshots *SnapshotCommandHandler
	settled   automation.SettledProvider
	history   HistoryProvider
	effects   EffectLogProvider
	screens   ScreenshotProvider
	current   *call
}

// call tracks one dispatched command until its response is sent.
type call struct {
	started   time.Time
	cmd       protocol.Command
	responded bool
}

// New creates a bridge over config.Transport.
func New(config *Config) *Bridge {
	if config == nil || config.Transport == nil {
		panic("bridge: transport is required")
	}
	if config.Automation == nil {
		config.Automation = automation.NewContext()
	}
	if config.SettleFrames <= 0 {
		config.SettleFrames = automation.DefaultSettleFrames
	}
	if config.SettleTimeout <= 0 {
		config.SettleTimeout = automation.DefaultMaxWait
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	if err := config.Metrics.WatchBusyTokens(config.Automation.ActiveCount); err != nil {
		logging.OrNop(config.Logger).Debug("busy token gauge not registered", zap.Error(err))
	}
	return &Bridge{
		config:    config,
		transport: config.Transport,
		logger:    logging.OrNop(config.Logger).Named("bridge"),
		clock:     clock,
	}
}

// Automation returns the automation context.
func (b *Bridge) Automation() *automation.Context {
	return b.config.Automation
}

// SetHandler replaces the command handler. Walkers registered afterwards
// still go to the snapshot handler, which only serves commands while it is
// the active handler.
func (b *Bridge) SetHandler(h CommandHandler) {
	b.handler = h
}

// RegisterWalker adds a scene walker. The first call creates the snapshot
// handler, forwarding any providers set beforehand.
func (b *Bridge) RegisterWalker(w snapshot.SceneWalker) {
	if b.snapshots == nil {
		settled := b.settled
		if settled == nil {
			settled = automation.NewFrameSettledProvider(b.config.Automation,
				automation.WithSettleFrames(b.config.SettleFrames),
				automation.WithMaxWait(b.config.SettleTimeout),
				automation.WithClock(b.clock),
			)
		}
		b.snapshots = NewSnapshotCommandHandler(settled)
		b.snapshots.SetHistoryProvider(b.history)
		b.snapshots.SetEffectLogProvider(b.effects)
		b.snapshots.SetScreenshotProvider(b.screens)
		b.snapshots.SetMetrics(b.config.Metrics)
		if b.handler == nil {
			b.handler = b.snapshots
		}
	}
	b.snapshots.AddWalker(w)
}

// SetSettledProvider sets how the snapshot handler decides an action has
// settled.
func (b *Bridge) SetSettledProvider(p automation.SettledProvider) {
	b.settled = p
	if b.snapshots != nil && p != nil {
		b.snapshots.SetSettledProvider(p)
	}
}

// SetHistoryProvider sets the history source for snapshot responses.
func (b *Bridge) SetHistoryProvider(p HistoryProvider) {
	b.history = p
	if b.snapshots != nil {
		b.snapshots.SetHistoryProvider(p)
	}
}

// SetEffectLogProvider sets the effect-log source for snapshot responses.
func (b *Bridge) SetEffectLogProvider(p EffectLogProvider) {
	b.effects = p
	if b.snapshots != nil {
		b.snapshots.SetEffectLogProvider(p)
	}
}

// SetScreenshotProvider sets the image source for screenshot commands.
func (b *Bridge) SetScreenshotProvider(p ScreenshotProvider) {
	b.screens = p
	if b.snapshots != nil {
		b.snapshots.SetScreenshotProvider(p)
	}
}

// Tick advances any in-flight command one step, then dispatches queued
// commands until the queue is empty or a command goes in flight.
func (b *Bridge) Tick() {
	if b.handler != nil && b.handler.Busy() {
		b.guard(b.current, b.handler.Poll)
		if b.handler.Busy() {
			return
		}
	}

	queue := b.transport.Queue()
	for {
		cmd, ok := queue.TryPop()
		if !ok {
			return
		}
		b.dispatch(cmd)
		if b.handler != nil && b.handler.Busy() {
			return
		}
	}
}

func (b *Bridge) dispatch(cmd protocol.Command) {
	c := &call{started: b.clock(), cmd: cmd}
	b.logger.Debug("dispatching command", zap.String("command", cmd.Name), zap.String("id", cmd.ID))

	if b.handler == nil {
		b.finish(c, protocol.Fail(cmd.ID, protocol.NoHandler(cmd.Name)))
		return
	}

	b.current = c
	b.guard(c, func() {
		b.handler.HandleCommand(cmd, func(resp protocol.Response) {
			b.finish(c, resp)
		})
	})
}

// guard runs fn, converting a panic into an Internal failure for c.
func (b *Bridge) guard(c *call, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("command handler panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if c != nil {
				b.finish(c, protocol.Fail(c.cmd.ID, protocol.Internal(fmt.Sprintf("command handler panicked: %v", r))))
			}
		}
	}()
	fn()
}

func (b *Bridge) finish(c *call, resp protocol.Response) {
	if c.responded {
		b.logger.Warn("ignoring duplicate response", zap.String("id", c.cmd.ID))
		return
	}
	c.responded = true
	if b.current == c {
		b.current = nil
	}

	duration := b.clock().Sub(c.started)
	code := resp.Code.String()
	b.config.Metrics.RecordCommand(c.cmd.Name, code, duration)
	b.config.Audit.LogCommand(c.cmd.Name, c.cmd.ID, c.cmd.Params, code, duration)
	if !resp.Success {
		b.logger.Info("command failed",
			zap.String("command", c.cmd.Name),
			zap.String("id", c.cmd.ID),
			zap.String("code", code),
			zap.String("error", resp.Error),
		)
	}

	b.transport.Send(resp)
}

// Close shuts the transport down. Safe from any goroutine.
func (b *Bridge) Close() {
	b.transport.Shutdown()
}
