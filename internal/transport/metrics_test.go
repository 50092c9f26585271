// Copyright 2025 Joseph Cumines
//
// Metrics unit tests

package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordCommand("snapshot", "OK", time.Millisecond)
	m.ObserveSettle(3, true)
	m.IncMalformed("tcp")
	m.SetConnected("tcp", true)
	m.IncReconnects()
	assert.NoError(t, m.WatchBusyTokens(func() int64 { return 1 }))
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordCommand("click", "OK", 10*time.Millisecond)
	m.RecordCommand("click", "OK", 20*time.Millisecond)
	m.RecordCommand("click", "NotFound", time.Millisecond)
	m.IncMalformed("tcp")
	m.IncReconnects()
	m.ObserveSettle(4, false)
	m.ObserveSettle(600, true)

	body := scrape(t, m)
	assert.Contains(t, body, `abu_commands_total{code="OK",command="click"} 2`)
	assert.Contains(t, body, `abu_commands_total{code="NotFound",command="click"} 1`)
	assert.Contains(t, body, `abu_command_duration_seconds_count{command="click"} 3`)
	assert.Contains(t, body, `abu_malformed_messages_total{transport="tcp"} 1`)
	assert.Contains(t, body, "abu_reconnects_total 1")
	assert.Contains(t, body, "abu_settle_polls_count 2")
	assert.Contains(t, body, "abu_settle_timeouts_total 1")
}

func TestMetrics_ConnectedGauge(t *testing.T) {
	m := NewMetrics()
	m.SetConnected("ws", true)
	assert.Contains(t, scrape(t, m), `abu_connections_active{transport="ws"} 1`)
	m.SetConnected("ws", false)
	assert.Contains(t, scrape(t, m), `abu_connections_active{transport="ws"} 0`)
}

func TestMetrics_BusyTokensGauge(t *testing.T) {
	m := NewMetrics()
	var busy int64 = 2
	require.NoError(t, m.WatchBusyTokens(func() int64 { return busy }))
	assert.Contains(t, scrape(t, m), "abu_busy_tokens_active 2")

	busy = 0
	assert.Contains(t, scrape(t, m), "abu_busy_tokens_active 0")

	assert.Error(t, m.WatchBusyTokens(func() int64 { return 0 }), "duplicate registration")
}
