// Copyright 2025 Joseph Cumines
//
// Audit logging for bridge commands

package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditLogger records one structured JSON line per handled command: the
// command name and id, its params, the result code and the duration.
type AuditLogger struct {
	logger  *zap.Logger
	closer  io.Closer
	enabled bool
	mu      sync.RWMutex
}

// NewAuditLogger creates an audit logger appending to filePath. An empty
// path disables audit logging. Returns an error if the file cannot be
// opened.
func NewAuditLogger(filePath string) (*AuditLogger, error) {
	if filePath == "" {
		return &AuditLogger{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	a := NewAuditLoggerWriter(file)
	a.closer = file
	return a, nil
}

// NewAuditLoggerWriter creates an enabled audit logger writing to w.
func NewAuditLoggerWriter(w io.Writer) *AuditLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.InfoLevel,
	)
	return &AuditLogger{
		logger:  zap.New(core),
		enabled: true,
	}
}

// Close closes the audit log file if one is open. Safe to call multiple
// times and on a nil logger.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.logger != nil {
		_ = a.logger.Sync()
	}
	a.enabled = false
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// IsEnabled returns true if audit records are being written.
func (a *AuditLogger) IsEnabled() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LogCommand records a handled command.
func (a *AuditLogger) LogCommand(command, id string, params map[string]any, code string, duration time.Duration) {
	if !a.IsEnabled() {
		return
	}

	a.mu.RLock()
	logger := a.logger
	a.mu.RUnlock()

	if logger == nil {
		return
	}

	logger.Info("command",
		zap.String("command", command),
		zap.String("id", id),
		zap.String("params", encodeParams(params)),
		zap.String("code", code),
		zap.Float64("duration_seconds", duration.Seconds()),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

func encodeParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "[unencodable]"
	}
	return string(data)
}
