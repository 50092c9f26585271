// Copyright 2025 Joseph Cumines

// Package protocol defines the command/response schema shared by every
// transport: one JSON object per NDJSON line or per WebSocket text frame.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joeycumines/abu/internal/snapshot"
)

// Command names understood by the bridge.
const (
	CommandSnapshot   = "snapshot"
	CommandClick      = "click"
	CommandHover      = "hover"
	CommandDrag       = "drag"
	CommandScreenshot = "screenshot"
)

// Command is an inbound request from the controller.
type Command struct {
	Params map[string]any `json:"params"`
	ID     string         `json:"id"`
	Name   string         `json:"command"`
}

// Response is the outbound reply to a Command. ID always matches the
// command's ID.
//
//lint:ignore BETTERALIGN struct is intentionally ordered for clarity
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`

	// Code is the canonical result code. It labels metrics and audit
	// records and is not sent on the wire.
	Code codes.Code `json:"-"`
}

// SnapshotData is the data of a successful snapshot response, and the
// snapshot half of every action response.
type SnapshotData struct {
	Refs       map[string]snapshot.RefInfo `json:"refs"`
	Snapshot   string                      `json:"snapshot"`
	History    []string                    `json:"history,omitempty"`
	EffectLogs []string                    `json:"effectLogs,omitempty"`
}

// ActionData is the data of a successful click, hover or drag response:
// the action result flag merged with a fresh snapshot.
type ActionData struct {
	SnapshotData
	Clicked bool `json:"clicked,omitempty"`
	Hovered bool `json:"hovered,omitempty"`
	Dragged bool `json:"dragged,omitempty"`
}

// ScreenshotData is the data of a successful screenshot response: a PNG
// image, base64 encoded.
type ScreenshotData struct {
	Base64 string `json:"base64"`
}

// DecodeCommand parses one JSON-encoded command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return cmd, fmt.Errorf("empty message")
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return cmd, nil
}

// EncodeResponse marshals resp without a trailing newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}

// EncodeCommand marshals cmd without a trailing newline.
func EncodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}

// OK builds a success response carrying data. If data cannot be encoded,
// the result is an Internal failure instead.
func OK(id string, data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail(id, Internal(fmt.Sprintf("failed to encode response data: %v", err)))
	}
	return Response{ID: id, Success: true, Data: raw}
}

// Fail builds a failure response. The error text is the status message
// when err carries a status, err.Error() otherwise.
func Fail(id string, err error) Response {
	msg, code := "unknown error", codes.Unknown
	if err != nil {
		st := status.Convert(err)
		msg, code = st.Message(), st.Code()
	}
	return Response{ID: id, Success: false, Error: msg, Code: code}
}
