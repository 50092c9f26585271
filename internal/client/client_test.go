// Copyright 2025 Joseph Cumines

package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/abu/internal/protocol"
)

// mockBridge accepts one connection, records the command line it reads and
// replies with reply, or closes without replying if reply is nil.
func mockBridge(t *testing.T, reply map[string]any) (string, <-chan map[string]any) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan map[string]any, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd map[string]any
		if json.Unmarshal(line, &cmd) == nil {
			received <- cmd
		}
		if reply != nil {
			data, _ := json.Marshal(reply)
			_, _ = conn.Write(append(data, '\n'))
		}
	}()
	return ln.Addr().String(), received
}

func TestSend_Success(t *testing.T) {
	addr, _ := mockBridge(t, map[string]any{
		"id":      "test-id",
		"success": true,
		"data":    map[string]any{"snapshot": "- app", "refs": map[string]any{}},
	})

	resp, err := (&Client{Addr: addr, Timeout: 5 * time.Second}).Send(context.Background(), "snapshot", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	var data protocol.SnapshotData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "- app", data.Snapshot)
}

func TestSend_ErrorResponse(t *testing.T) {
	addr, _ := mockBridge(t, map[string]any{
		"id":      "test-id",
		"success": false,
		"error":   "Not found",
	})

	resp, err := (&Client{Addr: addr}).Send(context.Background(), "click", map[string]any{"ref": "e1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Not found", resp.Error)
}

func TestSend_WritesNDJSONCommand(t *testing.T) {
	addr, received := mockBridge(t, map[string]any{"id": "x", "success": true, "data": map[string]any{}})

	_, err := (&Client{Addr: addr, Timeout: 5 * time.Second}).Send(context.Background(), "click", map[string]any{"ref": "e1"})
	require.NoError(t, err)

	select {
	case cmd := <-received:
		assert.Equal(t, "click", cmd["command"])
		assert.Equal(t, map[string]any{"ref": "e1"}, cmd["params"])
		id, _ := cmd["id"].(string)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "id should be a UUID")
	case <-time.After(2 * time.Second):
		t.Fatal("mock bridge received no command")
	}
}

func TestSend_EmptyParamsSentAsObject(t *testing.T) {
	addr, received := mockBridge(t, map[string]any{"id": "x", "success": true})

	_, err := (&Client{Addr: addr, Timeout: 5 * time.Second}).Send(context.Background(), "snapshot", nil)
	require.NoError(t, err)

	cmd := <-received
	assert.Equal(t, map[string]any{}, cmd["params"])
}

func TestSend_EmptyResponse(t *testing.T) {
	addr, _ := mockBridge(t, nil)

	_, err := (&Client{Addr: addr, Timeout: 5 * time.Second}).Send(context.Background(), "snapshot", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = (&Client{Addr: addr, Timeout: time.Second}).Send(context.Background(), "snapshot", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to bridge")
	assert.False(t, errors.Is(err, ErrEmptyResponse))
}

func TestSend_TimesOutWaitingForReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()

	start := time.Now()
	_, err = (&Client{Addr: ln.Addr().String(), Timeout: 200 * time.Millisecond}).Send(context.Background(), "snapshot", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case conn := <-held:
		_ = conn.Close()
	case <-time.After(time.Second):
	}
}

func TestNew(t *testing.T) {
	c := New(9999, time.Second)
	assert.Equal(t, "127.0.0.1:9999", c.Addr)
	assert.Equal(t, time.Second, c.Timeout)
}

func TestStripRef(t *testing.T) {
	assert.Equal(t, "e1", StripRef("@e1"))
	assert.Equal(t, "e1", StripRef("e1"))
	assert.Equal(t, "@e1", StripRef("@@e1"))
	assert.Equal(t, "", StripRef(""))
}

func response(t *testing.T, data map[string]any) *protocol.Response {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &protocol.Response{ID: "test-id", Success: true, Data: raw}
}

func TestRender_Snapshot(t *testing.T) {
	resp := response(t, map[string]any{
		"snapshot": `- application "Dreamtides"`,
		"refs":     map[string]any{"e1": map[string]any{"role": "button", "name": "End Turn"}},
	})
	out, err := Render("snapshot", resp, false)
	require.NoError(t, err)
	assert.Equal(t, `- application "Dreamtides"`, out)
}

func TestRender_JSON(t *testing.T) {
	resp := response(t, map[string]any{
		"clicked":  true,
		"snapshot": "- app",
		"refs":     map[string]any{},
		"history":  []string{"Your turn begins"},
	})
	out, err := Render("click", resp, true)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, true, parsed["clicked"])
	assert.Equal(t, []any{"Your turn begins"}, parsed["history"])
	assert.Contains(t, out, "\n  ")
}

func TestRender_JSONWithoutData(t *testing.T) {
	out, err := Render("click", &protocol.Response{ID: "x", Success: true}, true)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestRender_HistoryBlock(t *testing.T) {
	resp := response(t, map[string]any{
		"clicked":  true,
		"snapshot": "- app",
		"refs":     map[string]any{},
		"history": []string{
			"Opponent's turn begins",
			"Stormcaller moved from battlefield to void",
			"Your turn begins",
		},
	})
	out, err := Render("click", resp, false)
	require.NoError(t, err)
	assert.Equal(t, "--- History ---\n"+
		"Opponent's turn begins\n"+
		"Stormcaller moved from battlefield to void\n"+
		"Your turn begins\n"+
		"---\n"+
		"- app", out)
}

func TestRender_EmptyHistoryOmitted(t *testing.T) {
	resp := response(t, map[string]any{"snapshot": "- app", "refs": map[string]any{}, "history": []string{}})
	out, err := Render("click", resp, false)
	require.NoError(t, err)
	assert.Equal(t, "- app", out)
}

func TestRender_HistoryThenEffectLogs(t *testing.T) {
	resp := response(t, map[string]any{
		"snapshot":   "- app",
		"history":    []string{"Your turn begins"},
		"effectLogs": []string{"draw 1"},
	})
	out, err := Render("snapshot", resp, false)
	require.NoError(t, err)
	assert.Equal(t, "--- History ---\nYour turn begins\n---\n--- Effect Logs ---\ndraw 1\n---\n- app", out)
}

func TestRender_ErrorResponse(t *testing.T) {
	_, err := Render("snapshot", &protocol.Response{ID: "x", Error: "Something went wrong"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Something went wrong")

	_, err = Render("snapshot", &protocol.Response{ID: "x"}, true)
	require.Error(t, err)

	_, err = Render("snapshot", nil, false)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRender_ScreenshotWritesPNG(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	resp := response(t, map[string]any{"base64": base64.StdEncoding.EncodeToString(png)})

	path, err := Render("screenshot", resp, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	assert.True(t, strings.HasSuffix(path, ".png"), path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestRender_ScreenshotJSONLeavesData(t *testing.T) {
	resp := response(t, map[string]any{"base64": "iVBORw=="})
	out, err := Render("screenshot", resp, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"base64":"iVBORw=="}`, out)
}

func TestSaveScreenshot_BadData(t *testing.T) {
	_, err := SaveScreenshot(json.RawMessage(`{}`))
	assert.ErrorContains(t, err, "no image data")

	_, err = SaveScreenshot(json.RawMessage(`{"base64":"not base64!"}`))
	assert.ErrorContains(t, err, "failed to decode screenshot")
}
