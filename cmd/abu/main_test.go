// Copyright 2025 Joseph Cumines

package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge answers every command with reply and records what it
// received.
func fakeBridge(t *testing.T, reply map[string]any) (int, <-chan map[string]any) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan map[string]any, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			line, err := bufio.NewReader(conn).ReadBytes('\n')
			if err == nil {
				var cmd map[string]any
				if json.Unmarshal(line, &cmd) == nil {
					received <- cmd
				}
				resp := map[string]any{"id": cmd["id"]}
				for k, v := range reply {
					resp[k] = v
				}
				data, _ := json.Marshal(resp)
				_, _ = conn.Write(append(data, '\n'))
			}
			_ = conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, received
}

func run(t *testing.T, port int, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(port)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func receive(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command received")
		return nil
	}
}

var snapshotReply = map[string]any{
	"success": true,
	"data":    map[string]any{"snapshot": "- app", "refs": map[string]any{}},
}

func TestSnapshot_DefaultsSendNoParams(t *testing.T) {
	port, received := fakeBridge(t, snapshotReply)

	out, err := run(t, port, "snapshot")
	require.NoError(t, err)
	assert.Equal(t, "- app\n", out)

	cmd := receive(t, received)
	assert.Equal(t, "snapshot", cmd["command"])
	assert.Equal(t, map[string]any{}, cmd["params"])
}

func TestSnapshot_AllFlags(t *testing.T) {
	port, received := fakeBridge(t, snapshotReply)

	_, err := run(t, port, "snapshot", "--compact", "--interactive", "--max-depth", "5", "--effect-logs")
	require.NoError(t, err)

	cmd := receive(t, received)
	assert.Equal(t, map[string]any{
		"compact":     true,
		"interactive": true,
		"maxDepth":    float64(5),
		"effectLogs":  true,
	}, cmd["params"])
}

func TestSnapshot_ExplicitFalseIsSent(t *testing.T) {
	port, received := fakeBridge(t, snapshotReply)

	_, err := run(t, port, "snapshot", "--compact=false")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"compact": false}, receive(t, received)["params"])
}

func TestClickAndHover_StripRef(t *testing.T) {
	for _, name := range []string{"click", "hover"} {
		t.Run(name, func(t *testing.T) {
			port, received := fakeBridge(t, snapshotReply)

			_, err := run(t, port, name, "@e1")
			require.NoError(t, err)

			cmd := receive(t, received)
			assert.Equal(t, name, cmd["command"])
			assert.Equal(t, map[string]any{"ref": "e1"}, cmd["params"])
		})
	}
}

func TestDrag(t *testing.T) {
	t.Run("with target", func(t *testing.T) {
		port, received := fakeBridge(t, snapshotReply)
		_, err := run(t, port, "drag", "@e1", "@e2")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"source": "e1", "target": "e2"}, receive(t, received)["params"])
	})

	t.Run("without target", func(t *testing.T) {
		port, received := fakeBridge(t, snapshotReply)
		_, err := run(t, port, "drag", "e1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"source": "e1"}, receive(t, received)["params"])
	})
}

func TestArgsValidated(t *testing.T) {
	_, err := run(t, 1, "click")
	assert.Error(t, err)
	_, err = run(t, 1, "drag", "a", "b", "c")
	assert.Error(t, err)
	_, err = run(t, 1, "snapshot", "extra")
	assert.Error(t, err)
	_, err = run(t, 1, "screenshot", "extra")
	assert.Error(t, err)
}

func TestScreenshot_SavesPNG(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nframe")
	port, received := fakeBridge(t, map[string]any{
		"success": true,
		"data":    map[string]any{"base64": base64.StdEncoding.EncodeToString(png)},
	})

	out, err := run(t, port, "screenshot")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	t.Cleanup(func() { _ = os.Remove(path) })

	cmd := receive(t, received)
	assert.Equal(t, "screenshot", cmd["command"])
	assert.Equal(t, map[string]any{}, cmd["params"])

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestJSONOutput(t *testing.T) {
	port, _ := fakeBridge(t, map[string]any{
		"success": true,
		"data":    map[string]any{"clicked": true, "snapshot": "- app", "refs": map[string]any{}},
	})

	out, err := run(t, port, "--json", "click", "e1")
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, true, parsed["clicked"])
}

func TestErrorResponseFails(t *testing.T) {
	port, _ := fakeBridge(t, map[string]any{"success": false, "error": `ref "e9" not found`})

	_, err := run(t, port, "click", "e9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ref "e9" not found`)
}

func TestPortFlagDefault(t *testing.T) {
	root := newRootCmd(4242)
	flag := root.PersistentFlags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, strconv.Itoa(4242), flag.DefValue)
}
