// Copyright 2025 Joseph Cumines
//
// Demo host: runs a card table scene behind the automation bridge

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/bridge"
	"github.com/joeycumines/abu/internal/config"
	"github.com/joeycumines/abu/internal/history"
	"github.com/joeycumines/abu/internal/logging"
	"github.com/joeycumines/abu/internal/snapshot"
	"github.com/joeycumines/abu/internal/transport"
)

// frameInterval is the host tick rate, 60 Hz.
const frameInterval = time.Second / 60

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "abu-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", zap.String("warning", w))
	}

	audit, err := logging.NewAuditLogger(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	metrics := transport.NewMetrics()
	ctx := automation.NewContext()
	tr := newTransport(cfg, logger, metrics)

	var admin *transport.AdminServer
	if cfg.AdminAddr != "" {
		admin = transport.NewAdminServer(&transport.AdminConfig{
			Logger:     logger,
			Metrics:    metrics,
			Transport:  tr,
			BusyTokens: ctx.ActiveCount,
			Address:    cfg.AdminAddr,
		})
		if err := admin.Start(); err != nil {
			return err
		}
		defer func() { _ = admin.Close() }()
	}

	b := bridge.New(&bridge.Config{
		Transport:     tr,
		Automation:    ctx,
		Logger:        logger,
		Metrics:       metrics,
		Audit:         audit,
		SettleFrames:  cfg.SettleFrames,
		SettleTimeout: cfg.SettleTimeout,
	})

	hist := &history.Log{}
	g := newGame(ctx, hist, logger.Named("game"))
	b.RegisterWalker(snapshot.NewElementWalker(g.root))
	b.SetHistoryProvider(hist)
	b.SetEffectLogProvider(hist)
	b.SetScreenshotProvider(bridge.ScreenshotFunc(g.screenshot))

	if err := tr.Start(); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}
	logger.Info("bridge started",
		zap.String("transport", string(cfg.Transport)),
		zap.Int("port", cfg.Port),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			break loop
		case <-ticker.C:
			g.tick()
			b.Tick()
		}
	}

	// Wait for graceful shutdown
	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-sigChan:
		logger.Warn("forced shutdown")
	}
	return nil
}

func newTransport(cfg *config.Config, logger *zap.Logger, metrics *transport.Metrics) transport.Transport {
	limiter := transport.NewRateLimiter(cfg.MaxCommandsPerSecond)
	switch cfg.Transport {
	case config.TransportWS:
		return transport.NewWSClient(&transport.WSClientConfig{
			Logger:         logger,
			Metrics:        metrics,
			Limiter:        limiter,
			URL:            transport.ClientURL(cfg.WSPort, cfg.WSPath),
			ReconnectDelay: cfg.ReconnectDelay,
			ShutdownGrace:  cfg.ShutdownGrace,
		})
	default:
		return transport.NewTCPListener(&transport.ListenerConfig{
			Logger:        logger,
			Metrics:       metrics,
			Limiter:       limiter,
			Address:       transport.LoopbackAddress(cfg.Port),
			ShutdownGrace: cfg.ShutdownGrace,
		})
	}
}
