// Copyright 2025 Joseph Cumines
//
// A small card table scene for exercising the bridge

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/automation"
	"github.com/joeycumines/abu/internal/history"
	"github.com/joeycumines/abu/internal/snapshot"
)

// endTurnTicks is how long the opponent's turn animates, in ticks.
const endTurnTicks = 45

var deck = []string{"Ember", "Stormcaller", "Tidewarden", "Ashen Colossus", "Lumen Sprite"}

// game is a turn-based card table. It is owned by the host thread; every
// method must be called from there.
type game struct {
	automation *automation.Context
	log        *history.Log
	logger     *zap.Logger
	animation  *animation
	status     string
	hand       []string
	field      []string
	turn       int
	drawn      int
}

// animation holds a busy token until it has run for its ticks.
type animation struct {
	token     *automation.BusyToken
	remaining int
}

func newGame(ctx *automation.Context, log *history.Log, logger *zap.Logger) *game {
	g := &game{
		automation: ctx,
		log:        log,
		logger:     logger,
		turn:       1,
	}
	for range 3 {
		g.draw()
	}
	g.status = g.turnStatus()
	return g
}

func (g *game) turnStatus() string {
	return fmt.Sprintf("Turn %d: your move", g.turn)
}

func (g *game) draw() {
	card := deck[g.drawn%len(deck)]
	g.drawn++
	g.hand = append(g.hand, card)
	g.log.Effects.Appendf("drew %s", card)
}

// root builds the element tree for the current state.
func (g *game) root() snapshot.Element {
	hand := make([]snapshot.Element, 0, len(g.hand))
	for i, card := range g.hand {
		hand = append(hand, &snapshot.Draggable{
			Role:    "card",
			Label:   card,
			OnHover: func() { g.status = "Inspecting " + card },
			OnDrag:  func(target string) { g.play(i, target) },
		})
	}
	field := make([]snapshot.Element, 0, len(g.field))
	for _, card := range g.field {
		field = append(field, &snapshot.Text{Role: "card", Label: card})
	}
	return &snapshot.Container{
		Role:  "application",
		Label: "Abu Demo",
		Items: []snapshot.Element{
			&snapshot.Text{Role: "status", Label: g.status},
			&snapshot.Container{Role: "region", Label: "Hand", Items: hand},
			&snapshot.Container{Role: "region", Label: "Battlefield", Items: field},
			&snapshot.Button{Label: "End Turn", OnClick: g.endTurn},
		},
	}
}

// play moves the card at index i to the battlefield. A drag without a
// target returns the card to the hand.
func (g *game) play(i int, target string) {
	if i < 0 || i >= len(g.hand) || g.animation != nil {
		return
	}
	card := g.hand[i]
	if target == "" {
		g.status = card + " returned to hand"
		return
	}
	g.hand = append(g.hand[:i:i], g.hand[i+1:]...)
	g.field = append(g.field, card)
	g.status = card + " played"
	g.log.History.Appendf("%s moved from hand to battlefield", card)
}

// endTurn starts the opponent's turn animation. It is ignored while one is
// already running.
func (g *game) endTurn() {
	if g.animation != nil {
		return
	}
	g.animation = &animation{token: g.automation.Busy(), remaining: endTurnTicks}
	g.status = "Opponent's turn"
	g.log.History.Append("Opponent's turn begins")
	g.logger.Debug("turn ended", zap.Int("turn", g.turn))
}

// tick advances the running animation by one frame.
func (g *game) tick() {
	a := g.animation
	if a == nil {
		return
	}
	a.remaining--
	if a.remaining > 0 {
		return
	}
	a.token.Dispose()
	g.animation = nil
	g.turn++
	g.draw()
	g.status = g.turnStatus()
	g.log.History.Append("Your turn begins")
}
