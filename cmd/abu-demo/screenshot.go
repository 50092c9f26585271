// Copyright 2025 Joseph Cumines

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

const (
	frameWidth  = 320
	frameHeight = 120
	cardWidth   = 40
	cardHeight  = 40
	cardGap     = 8

	handRowTop     = cardGap
	fieldRowTop    = handRowTop + cardHeight + cardGap
	statusBarTop   = frameHeight - 8
	maxCardsPerRow = (frameWidth - cardGap) / (cardWidth + cardGap)
)

var (
	tableColor    = color.RGBA{R: 0x1e, G: 0x3a, B: 0x2b, A: 0xff}
	handColor     = color.RGBA{R: 0x3b, G: 0x6e, B: 0xd8, A: 0xff}
	fieldColor    = color.RGBA{R: 0xd8, G: 0xa1, B: 0x3b, A: 0xff}
	opponentColor = color.RGBA{R: 0xc0, G: 0x30, B: 0x30, A: 0xff}
	yourTurnColor = color.RGBA{R: 0x40, G: 0xc0, B: 0x60, A: 0xff}
)

// screenshot renders the table as a PNG: hand cards on the top row,
// battlefield cards below, and a status bar that is red while the opponent
// is moving.
func (g *game) screenshot() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(tableColor), image.Point{}, draw.Src)

	drawRow(img, handRowTop, len(g.hand), handColor)
	drawRow(img, fieldRowTop, len(g.field), fieldColor)

	bar := yourTurnColor
	if g.animation != nil {
		bar = opponentColor
	}
	draw.Draw(img, image.Rect(0, statusBarTop, frameWidth, frameHeight), image.NewUniform(bar), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRow(img draw.Image, top, n int, c color.Color) {
	n = min(n, maxCardsPerRow)
	for i := range n {
		p := cardOrigin(top, i)
		draw.Draw(img, image.Rect(p.X, p.Y, p.X+cardWidth, p.Y+cardHeight), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// cardOrigin is the top-left pixel of slot i in the row starting at top.
func cardOrigin(top, i int) image.Point {
	return image.Pt(cardGap+i*(cardWidth+cardGap), top)
}
