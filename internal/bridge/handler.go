// Copyright 2025 Joseph Cumines
//
// Snapshot, click, hover, drag and screenshot command handling

package bridge

import (
	"encoding/base64"
	"fmt"

	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/protocol"
	"github.com/joeycumines/abu/internal/snapshot"
	"github.com/joeycumines/abu/internal/transport"
)

// CommandHandler processes commands on the host thread.
//
// HandleCommand must eventually call respond exactly once, either before
// returning or from a later Poll. While Busy reports true the dispatcher
// calls Poll once per tick and dequeues nothing else.
type CommandHandler interface {
	HandleCommand(cmd protocol.Command, respond func(protocol.Response))
	Busy() bool
	Poll()
}

// HistoryProvider supplies human-readable history entries recorded since
// the last call.
type HistoryProvider interface {
	TakeHistory() []string
}

// EffectLogProvider supplies effect-log entries recorded since the last call.
type EffectLogProvider interface {
	TakeEffectLogs() []string
}

// ScreenshotProvider captures the host's current frame as PNG bytes.
type ScreenshotProvider interface {
	CaptureScreenshot() ([]byte, error)
}

// ScreenshotFunc adapts a function to ScreenshotProvider.
type ScreenshotFunc func() ([]byte, error)

// CaptureScreenshot calls f.
func (f ScreenshotFunc) CaptureScreenshot() ([]byte, error) { return f() }

// HandlerState is the SnapshotCommandHandler's processing phase.
type HandlerState int

const (
	StateIdle HandlerState = iota
	StateWalking
	StateDispatching
	StateAwaitingSettle
	StateRewalking
)

var handlerStateNames = [...]string{
	StateIdle:           "Idle",
	StateWalking:        "Walking",
	StateDispatching:    "Dispatching",
	StateAwaitingSettle: "AwaitingSettle",
	StateRewalking:      "Rewalking",
}

func (s HandlerState) String() string {
	if s >= 0 && int(s) < len(handlerStateNames) {
		return handlerStateNames[s]
	}
	return "HandlerState(?)"
}

// SnapshotCommandHandler serves snapshot, click, hover and drag against
// the registered scene walkers, and screenshot when a provider is set.
//
// Every walk clears the ref registry first, so refs from an earlier
// snapshot stop resolving as soon as a new one is taken.
type SnapshotCommandHandler struct {
	refs    *snapshot.RefRegistry
	settled automation.SettledProvider
	history HistoryProvider
	effects EffectLogProvider
	screens ScreenshotProvider
	metrics *transport.Metrics
	pending *pendingAction
	walkers []snapshot.SceneWalker
	state   HandlerState
}

// NewSnapshotCommandHandler creates a handler using settled to decide when
// an action has finished propagating. A nil settled uses a frame settled
// provider on a private automation context.
func NewSnapshotCommandHandler(settled automation.SettledProvider, walkers ...snapshot.SceneWalker) *SnapshotCommandHandler {
	if settled == nil {
		settled = automation.NewFrameSettledProvider(automation.NewContext())
	}
	return &SnapshotCommandHandler{
		refs:    snapshot.NewRefRegistry(),
		settled: settled,
		walkers: walkers,
	}
}

// AddWalker appends a walker. Walkers run in the order they were added and
// their roots are concatenated.
func (h *SnapshotCommandHandler) AddWalker(w snapshot.SceneWalker) {
	h.walkers = append(h.walkers, w)
}

// SetSettledProvider replaces the settled provider.
func (h *SnapshotCommandHandler) SetSettledProvider(p automation.SettledProvider) {
	h.settled = p
}

// SetHistoryProvider sets the history source drained into responses.
func (h *SnapshotCommandHandler) SetHistoryProvider(p HistoryProvider) {
	h.history = p
}

// SetEffectLogProvider sets the effect-log source drained into responses.
func (h *SnapshotCommandHandler) SetEffectLogProvider(p EffectLogProvider) {
	h.effects = p
}

// SetScreenshotProvider sets the image source for screenshot commands.
func (h *SnapshotCommandHandler) SetScreenshotProvider(p ScreenshotProvider) {
	h.screens = p
}

// SetMetrics sets where settle statistics are recorded.
func (h *SnapshotCommandHandler) SetMetrics(m *transport.Metrics) {
	h.metrics = m
}

// Refs returns the handler's ref registry.
func (h *SnapshotCommandHandler) Refs() *snapshot.RefRegistry {
	return h.refs
}

// State returns the current processing phase.
func (h *SnapshotCommandHandler) State() HandlerState {
	return h.state
}

// Busy reports whether an action is waiting to settle.
func (h *SnapshotCommandHandler) Busy() bool {
	return h.pending != nil
}

// HandleCommand implements CommandHandler.
func (h *SnapshotCommandHandler) HandleCommand(cmd protocol.Command, respond func(protocol.Response)) {
	defer h.resetOnPanic()

	switch cmd.Name {
	case protocol.CommandSnapshot:
		h.handleSnapshot(cmd, respond)
	case protocol.CommandClick:
		h.handlePointer(cmd, respond, actionClick)
	case protocol.CommandHover:
		h.handlePointer(cmd, respond, actionHover)
	case protocol.CommandDrag:
		h.handleDrag(cmd, respond)
	case protocol.CommandScreenshot:
		h.handleScreenshot(cmd, respond)
	default:
		respond(protocol.Fail(cmd.ID, protocol.UnknownCommand(cmd.Name)))
	}
}

// Poll steps the pending action once.
func (h *SnapshotCommandHandler) Poll() {
	if h.pending == nil {
		return
	}
	defer h.resetOnPanic()

	if h.pending.step(h.settled, h.rewalk) {
		if h.metrics != nil {
			timedOut := false
			if r, ok := h.settled.(automation.TimeoutReporter); ok {
				timedOut = r.TimedOut()
			}
			h.metrics.ObserveSettle(h.pending.polls, timedOut)
		}
		h.pending = nil
		h.state = StateIdle
	}
}

// resetOnPanic returns the handler to Idle before re-panicking, so the
// dispatcher can report the failure and carry on.
func (h *SnapshotCommandHandler) resetOnPanic() {
	if r := recover(); r != nil {
		h.pending = nil
		h.state = StateIdle
		panic(r)
	}
}

func (h *SnapshotCommandHandler) handleSnapshot(cmd protocol.Command, respond func(protocol.Response)) {
	var params protocol.SnapshotParams
	if err := protocol.DecodeParams(cmd, &params); err != nil {
		respond(protocol.Fail(cmd.ID, err))
		return
	}
	h.state = StateWalking
	data := h.capture(params)
	h.state = StateIdle
	respond(protocol.OK(cmd.ID, data))
}

func (h *SnapshotCommandHandler) handleScreenshot(cmd protocol.Command, respond func(protocol.Response)) {
	if h.screens == nil {
		respond(protocol.Fail(cmd.ID, protocol.NoScreenshot()))
		return
	}
	png, err := h.screens.CaptureScreenshot()
	if err != nil {
		respond(protocol.Fail(cmd.ID, protocol.Internal(fmt.Sprintf("failed to capture screenshot: %v", err))))
		return
	}
	respond(protocol.OK(cmd.ID, protocol.ScreenshotData{
		Base64: base64.StdEncoding.EncodeToString(png),
	}))
}

func (h *SnapshotCommandHandler) handlePointer(cmd protocol.Command, respond func(protocol.Response), kind actionKind) {
	var params protocol.RefParams
	if err := protocol.DecodeParams(cmd, &params); err != nil {
		respond(protocol.Fail(cmd.ID, err))
		return
	}
	ref := protocol.NormalizeRef(params.Ref)
	if ref == "" {
		respond(protocol.Fail(cmd.ID, protocol.MissingParam(cmd.Name, "ref")))
		return
	}
	callbacks, ok := h.refs.TryGetCallbacks(ref)
	if !ok {
		respond(protocol.Fail(cmd.ID, protocol.RefNotFound(ref)))
		return
	}

	fn := callbacks.OnClick
	if kind == actionHover {
		fn = callbacks.OnHover
	}
	if fn == nil {
		respond(protocol.Fail(cmd.ID, protocol.Unsupported(ref, cmd.Name)))
		return
	}

	h.state = StateDispatching
	fn()
	h.await(cmd, params.SnapshotParams, kind, respond)
}

func (h *SnapshotCommandHandler) handleDrag(cmd protocol.Command, respond func(protocol.Response)) {
	var params protocol.DragParams
	if err := protocol.DecodeParams(cmd, &params); err != nil {
		respond(protocol.Fail(cmd.ID, err))
		return
	}
	source := protocol.NormalizeRef(params.Source)
	if source == "" {
		respond(protocol.Fail(cmd.ID, protocol.MissingParam(cmd.Name, "source")))
		return
	}
	callbacks, ok := h.refs.TryGetCallbacks(source)
	if !ok {
		respond(protocol.Fail(cmd.ID, protocol.RefNotFound(source)))
		return
	}
	target := protocol.NormalizeRef(params.Target)
	if target != "" {
		if _, ok := h.refs.TryGetCallbacks(target); !ok {
			respond(protocol.Fail(cmd.ID, protocol.RefNotFound(target)))
			return
		}
	}
	if callbacks.OnDrag == nil {
		respond(protocol.Fail(cmd.ID, protocol.Unsupported(source, cmd.Name)))
		return
	}

	h.state = StateDispatching
	callbacks.OnDrag(target)
	h.await(cmd, params.SnapshotParams, actionDrag, respond)
}

func (h *SnapshotCommandHandler) await(cmd protocol.Command, params protocol.SnapshotParams, kind actionKind, respond func(protocol.Response)) {
	h.settled.NotifyActionDispatched()
	h.pending = newPendingAction(cmd.ID, kind, params, respond)
	h.state = StateAwaitingSettle
}

func (h *SnapshotCommandHandler) rewalk(params protocol.SnapshotParams) protocol.SnapshotData {
	h.state = StateRewalking
	return h.capture(params)
}

// capture walks every registered walker, formats the result and drains the
// history and effect-log providers.
func (h *SnapshotCommandHandler) capture(params protocol.SnapshotParams) protocol.SnapshotData {
	h.refs.Clear()
	roots := make([]*snapshot.SceneNode, 0, len(h.walkers))
	for _, w := range h.walkers {
		if root := w.Walk(h.refs); root != nil {
			roots = append(roots, root)
		}
	}
	result := snapshot.Format(roots, params.Options())

	data := protocol.SnapshotData{
		Snapshot: result.Text,
		Refs:     result.Refs,
	}
	if h.history != nil {
		data.History = h.history.TakeHistory()
	}
	if h.effects != nil {
		if effects := h.effects.TakeEffectLogs(); params.EffectLogs {
			data.EffectLogs = effects
		}
	}
	return data
}
