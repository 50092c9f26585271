// Copyright 2025 Joseph Cumines

package bridge

import (
	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/protocol"
)

type actionKind int

const (
	actionClick actionKind = iota
	actionHover
	actionDrag
)

// pendingAction is a dispatched input waiting to settle. It is stepped once
// per tick; the step that observes a settled scene re-walks and responds.
type pendingAction struct {
	respond func(protocol.Response)
	id      string
	params  protocol.SnapshotParams
	kind    actionKind
	polls   int
	done    bool
}

func newPendingAction(id string, kind actionKind, params protocol.SnapshotParams, respond func(protocol.Response)) *pendingAction {
	return &pendingAction{
		respond: respond,
		id:      id,
		params:  params,
		kind:    kind,
	}
}

// step polls settled once and reports whether the action has completed.
func (a *pendingAction) step(settled automation.SettledProvider, rewalk func(protocol.SnapshotParams) protocol.SnapshotData) bool {
	if a.done {
		return true
	}
	a.polls++
	if !settled.IsSettled() {
		return false
	}

	data := protocol.ActionData{SnapshotData: rewalk(a.params)}
	switch a.kind {
	case actionClick:
		data.Clicked = true
	case actionHover:
		data.Hovered = true
	case actionDrag:
		data.Dragged = true
	}
	a.done = true
	a.respond(protocol.OK(a.id, data))
	return true
}
