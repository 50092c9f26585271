// Copyright 2025 Joseph Cumines

package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/bridge"
	"github.com/joeycumines/abu/internal/history"
	"github.com/joeycumines/abu/internal/protocol"
	"github.com/joeycumines/abu/internal/snapshot"
	"github.com/joeycumines/abu/internal/transport"
)

type loopback struct {
	queue transport.CommandQueue
	sent  []protocol.Response
}

func (l *loopback) Start() error                   { return nil }
func (l *loopback) Send(resp protocol.Response)    { l.sent = append(l.sent, resp) }
func (l *loopback) Shutdown()                      {}
func (l *loopback) Queue() *transport.CommandQueue { return &l.queue }

type harness struct {
	game   *game
	bridge *bridge.Bridge
	tr     *loopback
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := automation.NewContext()
	hist := &history.Log{}
	tr := &loopback{}
	b := bridge.New(&bridge.Config{Transport: tr, Automation: ctx})
	g := newGame(ctx, hist, zap.NewNop())
	b.RegisterWalker(snapshot.NewElementWalker(g.root))
	b.SetHistoryProvider(hist)
	b.SetEffectLogProvider(hist)
	b.SetScreenshotProvider(bridge.ScreenshotFunc(g.screenshot))
	return &harness{game: g, bridge: b, tr: tr}
}

// do sends one command and ticks the host loop until it is answered.
func (h *harness) do(t *testing.T, name string, params map[string]any) (protocol.ActionData, int) {
	t.Helper()
	h.tr.queue.Push(protocol.Command{ID: name + "-1", Name: name, Params: params})
	for ticks := 1; ticks <= 10*endTurnTicks; ticks++ {
		h.game.tick()
		h.bridge.Tick()
		if len(h.tr.sent) > 0 {
			resp := h.tr.sent[0]
			h.tr.sent = nil
			require.True(t, resp.Success, "%s failed: %s", name, resp.Error)
			var data protocol.ActionData
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			return data, ticks
		}
	}
	t.Fatalf("%s was never answered", name)
	return protocol.ActionData{}, 0
}

func TestGame_InitialSnapshot(t *testing.T) {
	h := newHarness(t)
	data, ticks := h.do(t, protocol.CommandSnapshot, map[string]any{"effectLogs": true})
	assert.Equal(t, 1, ticks)

	want := strings.Join([]string{
		`- application "Abu Demo"`,
		`  - status "Turn 1: your move"`,
		`  - region "Hand"`,
		`    - card "Ember" [ref=e1]`,
		`    - card "Stormcaller" [ref=e2]`,
		`    - card "Tidewarden" [ref=e3]`,
		`  - region "Battlefield"`,
		`  - button "End Turn" [ref=e4]`,
	}, "\n")
	if diff := cmp.Diff(want, data.Snapshot); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, snapshot.RefInfo{Role: "button", Name: "End Turn"}, data.Refs["e4"])
	assert.Equal(t, []string{"drew Ember", "drew Stormcaller", "drew Tidewarden"}, data.EffectLogs)
	assert.Empty(t, data.History)
}

func TestGame_EndTurnWaitsForAnimation(t *testing.T) {
	h := newHarness(t)
	h.do(t, protocol.CommandSnapshot, nil)

	data, ticks := h.do(t, protocol.CommandClick, map[string]any{"ref": "@e4"})
	assert.True(t, data.Clicked)
	assert.Greater(t, ticks, endTurnTicks)
	assert.Equal(t, []string{"Opponent's turn begins", "Your turn begins"}, data.History)
	assert.Contains(t, data.Snapshot, `- status "Turn 2: your move"`)
	assert.Contains(t, data.Snapshot, `- card "Ashen Colossus"`)
	assert.False(t, h.game.automation.IsAnyActive())
}

func TestGame_EndTurnIgnoredWhileAnimating(t *testing.T) {
	h := newHarness(t)
	h.game.endTurn()
	token := h.game.animation.token
	h.game.endTurn()
	assert.Same(t, token, h.game.animation.token)
	assert.Equal(t, int64(1), h.game.automation.ActiveCount())

	for range endTurnTicks {
		h.game.tick()
	}
	assert.Nil(t, h.game.animation)
	assert.True(t, token.Disposed())
	assert.Equal(t, 2, h.game.turn)
}

func TestGame_DragPlaysCard(t *testing.T) {
	h := newHarness(t)
	h.do(t, protocol.CommandSnapshot, nil)

	data, _ := h.do(t, protocol.CommandDrag, map[string]any{"source": "e2", "target": "e4"})
	assert.True(t, data.Dragged)
	assert.Equal(t, []string{"Stormcaller moved from hand to battlefield"}, data.History)
	assert.Equal(t, []string{"Ember", "Tidewarden"}, h.game.hand)
	assert.Equal(t, []string{"Stormcaller"}, h.game.field)
	assert.Contains(t, data.Snapshot, "  - region \"Battlefield\"\n    - card \"Stormcaller\"\n")
}

func TestGame_DragWithoutTargetReturnsCard(t *testing.T) {
	h := newHarness(t)
	h.do(t, protocol.CommandSnapshot, nil)

	data, _ := h.do(t, protocol.CommandDrag, map[string]any{"source": "e1"})
	assert.True(t, data.Dragged)
	assert.Len(t, h.game.hand, 3)
	assert.Contains(t, data.Snapshot, `- status "Ember returned to hand"`)
}

func TestGame_HoverInspects(t *testing.T) {
	h := newHarness(t)
	h.do(t, protocol.CommandSnapshot, nil)

	data, _ := h.do(t, protocol.CommandHover, map[string]any{"ref": "e3"})
	assert.True(t, data.Hovered)
	assert.Contains(t, data.Snapshot, `- status "Inspecting Tidewarden"`)
}
