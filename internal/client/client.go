// Copyright 2025 Joseph Cumines

// Package client sends single commands to a running bridge over its TCP
// listener and renders the responses for a terminal.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/abu/internal/protocol"
)

// DefaultTimeout bounds one command round trip, including settle time on
// the host.
const DefaultTimeout = 30 * time.Second

// ErrEmptyResponse is returned when the bridge closes the connection
// without replying.
var ErrEmptyResponse = errors.New("empty response from bridge")

// Client is a one-shot NDJSON client. Each Send opens a fresh connection.
type Client struct {
	// Addr is the bridge listener address, e.g. "127.0.0.1:9999".
	Addr string
	// Timeout bounds each Send. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New returns a client for the bridge listening on port on loopback.
func New(port int, timeout time.Duration) *Client {
	return &Client{
		Addr:    net.JoinHostPort("127.0.0.1", fmt.Sprint(port)),
		Timeout: timeout,
	}
}

// Send writes one command with a fresh id and waits for one response line.
func (c *Client) Send(ctx context.Context, name string, params map[string]any) (*protocol.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if params == nil {
		params = map[string]any{}
	}
	line, err := protocol.EncodeCommand(protocol.Command{
		ID:     uuid.NewString(),
		Name:   name,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge at %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	data, err := bufio.NewReader(conn).ReadBytes('\n')
	data = bytes.TrimSpace(data)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}

	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// StripRef removes the "@" prefix refs are printed with.
func StripRef(ref string) string {
	return strings.TrimPrefix(ref, "@")
}

// Render formats resp for the terminal. A failure response is returned as
// an error. In JSON mode the data object is pretty-printed; otherwise the
// snapshot text is printed, preceded by any history and effect-log blocks.
// A screenshot is written to a temporary PNG file and its path returned.
func Render(name string, resp *protocol.Response, jsonOut bool) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("%s failed: %s", name, msg)
	}

	if jsonOut {
		if len(resp.Data) == 0 {
			return "{}", nil
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Data, "", "  "); err != nil {
			return "", fmt.Errorf("failed to format response data: %w", err)
		}
		return buf.String(), nil
	}

	if name == protocol.CommandScreenshot {
		return SaveScreenshot(resp.Data)
	}

	var data protocol.SnapshotData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return "", fmt.Errorf("failed to parse response data: %w", err)
		}
	}

	var b strings.Builder
	writeBlock(&b, "History", data.History)
	writeBlock(&b, "Effect Logs", data.EffectLogs)
	b.WriteString(data.Snapshot)
	return b.String(), nil
}

// SaveScreenshot decodes a screenshot response's data into a new temporary
// PNG file, returning its path.
func SaveScreenshot(raw json.RawMessage) (string, error) {
	var data protocol.ScreenshotData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return "", fmt.Errorf("failed to parse response data: %w", err)
		}
	}
	if data.Base64 == "" {
		return "", errors.New("screenshot response has no image data")
	}
	img, err := base64.StdEncoding.DecodeString(data.Base64)
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot: %w", err)
	}

	f, err := os.CreateTemp("", "abu-screenshot-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}
	if _, err := f.Write(img); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return f.Name(), nil
}

func writeBlock(b *strings.Builder, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "--- %s ---\n", title)
	for _, entry := range entries {
		b.WriteString(entry)
		b.WriteByte('\n')
	}
	b.WriteString("---\n")
}
