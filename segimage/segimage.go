// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package segimage draws the content of a seven-segment display as an image,
// to document a demo or to check rendering in tests without hardware.
package segimage

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Source is the display content to draw. *ledmodule.Module implements it, and
// so does every device embedding it.
type Source interface {
	NumDigits() int
	PatternAt(pos int) byte
	BrightnessAt(pos int) byte
	MaxBrightness() byte
}

// Opts represents the options available to draw.
type Opts struct {
	// DigitHeight is the height of a digit in pixels. It defaults to 80.
	DigitHeight int
	// On is the color of a lit segment at full brightness. It defaults to red.
	On color.NRGBA
	// Off is the color of an unlit segment. It defaults to a dark gray.
	Off color.NRGBA
	// Background defaults to black.
	Background color.NRGBA
	// Label is written under the digits, in the Off color if set.
	Label string
}

// DefaultOpts is the default drawing configuration.
var DefaultOpts = Opts{
	DigitHeight: 80,
	On:          color.NRGBA{R: 255, A: 255},
	Off:         color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 255},
	Background:  color.NRGBA{A: 255},
}

// geometry is the layout of one digit, in pixels.
type geometry struct {
	h, w, t float64
}

func newGeometry(height int) geometry {
	h := float64(height)
	return geometry{h: h, w: h / 2, t: h / 10}
}

// pitch is the horizontal distance between two digits.
func (g geometry) pitch() float64 {
	return g.w + 2.5*g.t
}

// segment returns the rectangle of segment seg, 0 for A to 6 for G.
func (g geometry) segment(seg int) (x, y, w, h float64) {
	half := g.h / 2
	vertical := half - 1.5*g.t
	switch seg {
	case 0:
		return g.t, 0, g.w - 2*g.t, g.t
	case 1:
		return g.w - g.t, g.t, g.t, vertical
	case 2:
		return g.w - g.t, half + g.t/2, g.t, vertical
	case 3:
		return g.t, g.h - g.t, g.w - 2*g.t, g.t
	case 4:
		return 0, half + g.t/2, g.t, vertical
	case 5:
		return 0, g.t, g.t, vertical
	default:
		return g.t, half - g.t/2, g.w - 2*g.t, g.t
	}
}

// Draw returns an image of the digits of src, digit 0 on the left. opts may
// be nil.
func Draw(src Source, opts *Opts) image.Image {
	return draw(src, opts).Image()
}

// WritePNG encodes the image of src as PNG to w.
func WritePNG(w io.Writer, src Source, opts *Opts) error {
	if err := draw(src, opts).EncodePNG(w); err != nil {
		return fmt.Errorf("segimage: %w", err)
	}
	return nil
}

func draw(src Source, opts *Opts) *gg.Context {
	o := DefaultOpts
	if opts != nil {
		o = *opts
		if o.DigitHeight <= 0 {
			o.DigitHeight = DefaultOpts.DigitHeight
		}
		if o.On == (color.NRGBA{}) {
			o.On = DefaultOpts.On
		}
	}
	g := newGeometry(o.DigitHeight)
	n := src.NumDigits()
	width, height := 2*g.t+float64(n)*g.pitch(), g.h+2*g.t
	face := basicfont.Face7x13
	if o.Label != "" {
		height += float64(face.Height) + g.t
	}
	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(o.Background)
	dc.Clear()
	if o.Label != "" {
		dc.SetFontFace(face)
		dc.SetColor(pick(o.Off != (color.NRGBA{}), o.Off, o.On))
		dc.DrawStringAnchored(o.Label, g.t, g.h+2*g.t, 0, 1)
	}
	for pos := range n {
		p := src.PatternAt(pos)
		lit := scale(o.On, src.BrightnessAt(pos), src.MaxBrightness())
		dc.Push()
		dc.Translate(g.t+float64(pos)*g.pitch(), g.t)
		for seg := range 7 {
			dc.DrawRoundedRectangle(ggRect(g.segment(seg)))
			dc.SetColor(pick(p&(1<<seg) != 0, lit, o.Off))
			dc.Fill()
		}
		dc.DrawCircle(g.w+g.t, g.h-g.t/2, g.t/2)
		dc.SetColor(pick(p&0x80 != 0, lit, o.Off))
		dc.Fill()
		dc.Pop()
	}
	return dc
}

func ggRect(x, y, w, h float64) (float64, float64, float64, float64, float64) {
	return x, y, w, h, min(w, h) / 3
}

func pick(lit bool, on, off color.NRGBA) color.NRGBA {
	if lit {
		return on
	}
	return off
}

// scale dims c proportionally to b out of maxB.
func scale(c color.NRGBA, b, maxB byte) color.NRGBA {
	if maxB == 0 || b >= maxB {
		return c
	}
	f := func(v uint8) uint8 {
		return uint8(uint32(v) * uint32(b) / uint32(maxB))
	}
	return color.NRGBA{R: f(c.R), G: f(c.G), B: f(c.B), A: c.A}
}
