// Copyright 2025 Joseph Cumines
//
// Snapshot text formatter

package snapshot

import (
	"strconv"
	"strings"
)

// Options controls which nodes Format prints. No option changes which refs
// exist; refs are assigned during the walk.
type Options struct {
	// Compact omits non-interactive, unlabeled nodes that have no
	// interactive or labeled descendant.
	Compact bool
	// InteractiveOnly prints only interactive nodes, as a flat list.
	InteractiveOnly bool
	// MaxDepth, when positive, limits printing to that many levels. Roots
	// are at depth 0, so MaxDepth 1 prints roots only.
	MaxDepth int
}

// RefInfo describes a ref in the snapshot's ref map.
type RefInfo struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// Result is a rendered snapshot.
type Result struct {
	Refs map[string]RefInfo
	Text string
}

// Format renders roots depth-first, one line per printed node:
//
//	<indent>- <role> "<label>" [ref=eN]
//
// Indentation is two spaces per depth. The label is omitted when empty and
// the ref suffix is present only for interactive nodes.
func Format(roots []*SceneNode, opts Options) Result {
	f := formatter{
		opts: opts,
		refs: make(map[string]RefInfo),
	}
	for _, root := range roots {
		f.visit(root, 0)
	}
	return Result{
		Text: strings.Join(f.lines, "\n"),
		Refs: f.refs,
	}
}

type formatter struct {
	refs    map[string]RefInfo
	lines   []string
	opts    Options
	ordinal int
}

func (f *formatter) visit(n *SceneNode, depth int) {
	if n == nil {
		return
	}

	// The ordinal tracks every interactive node, printed or not, so the
	// fallback ref matches the registry's depth-first numbering.
	ref := ""
	if n.Interactive {
		f.ordinal++
		ref = n.Ref
		if ref == "" {
			ref = RefPrefix + strconv.Itoa(f.ordinal)
		}
	}

	show := true
	switch {
	case f.opts.MaxDepth > 0 && depth >= f.opts.MaxDepth:
		show = false
	case f.opts.InteractiveOnly && !n.Interactive:
		show = false
	case f.opts.Compact && !n.Interactive && n.Label == "" && !hasSignificantDescendant(n):
		show = false
	}

	if show {
		indent := depth
		if f.opts.InteractiveOnly {
			indent = 0
		}
		f.lines = append(f.lines, renderLine(n, ref, indent))
		if ref != "" {
			f.refs[ref] = RefInfo{Role: n.Role, Name: n.Label}
		}
	}

	for _, child := range n.Children {
		f.visit(child, depth+1)
	}
}

func renderLine(n *SceneNode, ref string, depth int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("- ")
	b.WriteString(n.Role)
	if n.Label != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(n.Label))
	}
	if ref != "" {
		b.WriteString(" [ref=")
		b.WriteString(ref)
		b.WriteByte(']')
	}
	return b.String()
}

// hasSignificantDescendant reports whether any descendant of n is
// interactive or labeled.
func hasSignificantDescendant(n *SceneNode) bool {
	for _, child := range n.Children {
		if child == nil {
			continue
		}
		if child.Interactive || child.Label != "" || hasSignificantDescendant(child) {
			return true
		}
	}
	return false
}
