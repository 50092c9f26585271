// Copyright 2025 Joseph Cumines
//
// Configuration package for the automation bridge

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TransportType represents the bridge transport type
type TransportType string

const (
	// TransportTCP listens on loopback for NDJSON connections
	TransportTCP TransportType = "tcp"
	// TransportWS dials a controller's WebSocket server
	TransportWS TransportType = "ws"
)

const (
	DefaultPort                 = 9999
	DefaultWSPort               = 9998
	DefaultWSPath               = "/"
	DefaultReconnectDelay       = 2 * time.Second
	DefaultShutdownGrace        = 2 * time.Second
	DefaultSettleFrames         = 3
	DefaultSettleTimeout        = 10 * time.Second
	DefaultMaxCommandsPerSecond = 0
)

// Config holds the configuration for the bridge host
type Config struct {
	WSPath               string
	WorktreeBase         string
	AdminAddr            string
	AuditLogPath         string
	Transport            TransportType
	Warnings             []string
	ReconnectDelay       time.Duration
	ShutdownGrace        time.Duration
	SettleTimeout        time.Duration
	MaxCommandsPerSecond float64
	Port                 int
	WSPort               int
	SettleFrames         int
	Debug                bool
}

// Load loads the configuration from environment variables.
//
// Unparsable ports fall back to their defaults and are reported in
// Config.Warnings. Every other malformed value is an error.
func Load() (*Config, error) {
	reconnectDelay, err := getEnvAsDuration("ABU_RECONNECT_DELAY", DefaultReconnectDelay)
	if err != nil {
		return nil, err
	}

	shutdownGrace, err := getEnvAsDuration("ABU_SHUTDOWN_GRACE", DefaultShutdownGrace)
	if err != nil {
		return nil, err
	}

	settleTimeout, err := getEnvAsDuration("ABU_SETTLE_TIMEOUT", DefaultSettleTimeout)
	if err != nil {
		return nil, err
	}

	settleFrames, err := getEnvAsInt("ABU_SETTLE_FRAMES", DefaultSettleFrames)
	if err != nil {
		return nil, err
	}

	maxCommands, err := getEnvAsFloat("ABU_MAX_COMMANDS_PER_SECOND", DefaultMaxCommandsPerSecond)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Transport:            TransportType(getEnv("ABU_TRANSPORT", string(TransportTCP))),
		WSPath:               getEnv("ABU_WS_PATH", DefaultWSPath),
		WorktreeBase:         os.Getenv("ABU_WORKTREE_BASE"),
		AdminAddr:            os.Getenv("ABU_ADMIN_ADDR"),
		AuditLogPath:         os.Getenv("ABU_AUDIT_LOG"),
		ReconnectDelay:       reconnectDelay,
		ShutdownGrace:        shutdownGrace,
		SettleTimeout:        settleTimeout,
		SettleFrames:         settleFrames,
		MaxCommandsPerSecond: maxCommands,
		Debug:                getEnvAsBool("ABU_DEBUG", false),
	}

	port, err := ResolvePort()
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, err.Error())
	}
	cfg.Port = port

	wsPort, err := getEnvAsPort("ABU_WS_PORT", DefaultWSPort)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, err.Error())
	}
	cfg.WSPort = wsPort

	if cfg.Transport != TransportTCP && cfg.Transport != TransportWS {
		return nil, fmt.Errorf("invalid transport type: %s (must be 'tcp' or 'ws')", cfg.Transport)
	}

	if cfg.SettleFrames < 1 {
		return nil, fmt.Errorf("invalid value for ABU_SETTLE_FRAMES: %d (must be at least 1)", cfg.SettleFrames)
	}

	if cfg.MaxCommandsPerSecond < 0 {
		return nil, fmt.Errorf("invalid value for ABU_MAX_COMMANDS_PER_SECOND: %v (must not be negative)", cfg.MaxCommandsPerSecond)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected integer)", key, value)
	}
	return result, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected number)", key, value)
	}
	return result, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected duration, e.g., '2s', '500ms')", key, value)
	}
	return d, nil
}

// getEnvAsPort returns the port in key. An unset variable yields
// defaultValue; an unparsable one yields defaultValue and an error
// describing the fallback.
func getEnvAsPort(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return defaultValue, fmt.Errorf("invalid value for %s: %q (expected port 1-65535), using %d", key, value, defaultValue)
	}
	return port, nil
}
