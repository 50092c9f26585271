// Copyright 2025 Joseph Cumines
//
// Prometheus metrics for the bridge

package transport

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors on a private registry.
// All methods are safe on a nil receiver, which disables recording.
type Metrics struct {
	registry          *prometheus.Registry
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	settlePolls       prometheus.Histogram
	settleTimeouts    prometheus.Counter
	malformed         *prometheus.CounterVec
	connectionsActive *prometheus.GaugeVec
	reconnects        prometheus.Counter
}

// NewMetrics creates and registers the bridge collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abu_commands_total",
			Help: "Total commands handled, by command and result code.",
		}, []string{"command", "code"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "abu_command_duration_seconds",
			Help:    "Time from dequeue to response, by command.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"command"}),
		settlePolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "abu_settle_polls",
			Help:    "Settle polls taken by an in-flight action before responding.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		settleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abu_settle_timeouts_total",
			Help: "Actions that settled because the maximum wait elapsed.",
		}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abu_malformed_messages_total",
			Help: "Inbound messages that could not be decoded, by transport.",
		}, []string{"transport"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abu_connections_active",
			Help: "Currently attached controller connections, by transport.",
		}, []string{"transport"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abu_reconnects_total",
			Help: "WebSocket client dial attempts after the first.",
		}),
	}
	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.settlePolls,
		m.settleTimeouts,
		m.malformed,
		m.connectionsActive,
		m.reconnects,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WatchBusyTokens exports fn as the abu_busy_tokens_active gauge.
func (m *Metrics) WatchBusyTokens(fn func() int64) error {
	if m == nil || fn == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "abu_busy_tokens_active",
		Help: "Busy tokens currently holding settle detection open.",
	}, func() float64 { return float64(fn()) }))
}

// RecordCommand records a handled command.
func (m *Metrics) RecordCommand(command, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, code).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// ObserveSettle records how many polls an action took to settle.
func (m *Metrics) ObserveSettle(polls int, timedOut bool) {
	if m == nil {
		return
	}
	m.settlePolls.Observe(float64(polls))
	if timedOut {
		m.settleTimeouts.Inc()
	}
}

// IncMalformed counts an undecodable inbound message.
func (m *Metrics) IncMalformed(transport string) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(transport).Inc()
}

// SetConnected sets the live connection gauge for a transport.
func (m *Metrics) SetConnected(transport string, connected bool) {
	if m == nil {
		return
	}
	var v float64
	if connected {
		v = 1
	}
	m.connectionsActive.WithLabelValues(transport).Set(v)
}

// IncReconnects counts a WebSocket redial.
func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// Handler returns the Prometheus exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
