// Copyright 2025 Joseph Cumines
//
// Command parameter decoding

package protocol

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/joeycumines/abu/internal/snapshot"
)

// SnapshotParams are the params of snapshot, and the snapshot options of
// every action command.
type SnapshotParams struct {
	Interactive bool `mapstructure:"interactive"`
	Compact     bool `mapstructure:"compact"`
	MaxDepth    int  `mapstructure:"maxDepth"`
	EffectLogs  bool `mapstructure:"effectLogs"`
}

// Options converts p to formatter options.
func (p SnapshotParams) Options() snapshot.Options {
	return snapshot.Options{
		Compact:         p.Compact,
		InteractiveOnly: p.Interactive,
		MaxDepth:        p.MaxDepth,
	}
}

// RefParams are the params of click and hover.
type RefParams struct {
	Ref            string `mapstructure:"ref"`
	SnapshotParams `mapstructure:",squash"`
}

// DragParams are the params of drag. Target is optional.
type DragParams struct {
	Source         string `mapstructure:"source"`
	Target         string `mapstructure:"target"`
	SnapshotParams `mapstructure:",squash"`
}

// DecodeParams decodes a command's generic params object into out, a
// pointer to one of the params structs. Input is weakly typed, so JSON
// numbers and "true"/"false" strings are accepted where ints and bools are
// expected. Unknown keys are ignored.
func DecodeParams(cmd Command, out any) error {
	if cmd.Params == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return InvalidParams(cmd.Name, err)
	}
	if err := dec.Decode(cmd.Params); err != nil {
		return InvalidParams(cmd.Name, err)
	}
	return nil
}

// NormalizeRef strips a single leading "@" from ref, the form controllers
// commonly print refs in.
func NormalizeRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "@")
}
