// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package segterm emulates a seven-segment LED display on the terminal using
// ANSI color codes.
//
// Useful while you are waiting for your TM1637 module to come by mail, or to
// run the demo on a workstation.
package segterm

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"sync"
	"sync/atomic"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

const (
	// MaxBrightness is the number of intensity steps of the emulated LEDs.
	MaxBrightness = 15

	cellWidth  = 5
	cellHeight = 5
)

// cells lists the segment lighting each pixel of a digit, -1 for none. Bit 7
// is the decimal point.
var cells = [cellHeight][cellWidth]int{
	{-1, 0, 0, -1, -1},
	{5, -1, -1, 1, -1},
	{-1, 6, 6, -1, -1},
	{4, -1, -1, 2, -1},
	{-1, 3, 3, -1, 7},
}

// Opts represents the options available for this display.
type Opts struct {
	// W defaults to the colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette
	// On is the color of a lit segment at full brightness. It defaults to red.
	On color.NRGBA
	// Off is the color of an unlit segment and of the background.
	Off color.NRGBA

	_ struct{}
}

// Dev is a seven-segment display emulator that outputs to the console.
type Dev struct {
	*ledmodule.Module

	w       io.Writer
	palette ansi256.Palette
	lit     color.NRGBA
	unlit   color.NRGBA
	on      atomic.Bool

	mu    sync.Mutex
	drawn bool
	buf   bytes.Buffer
}

// New returns a Dev of numDigits digits that displays at the console. opts
// may be nil.
func New(numDigits int, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	m, err := ledmodule.New(numDigits, MaxBrightness)
	if err != nil {
		return nil, fmt.Errorf("segterm: %w", err)
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		Module:  m,
		w:       opts.W,
		palette: *p,
		lit:     opts.On,
		unlit:   opts.Off,
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
	}
	if d.lit == (color.NRGBA{}) {
		d.lit = color.NRGBA{R: 255, A: 255}
	}
	d.unlit.A = 255
	d.on.Store(true)
	m.SetBrightness(MaxBrightness)
	return d, nil
}

func (d *Dev) String() string {
	return "SegTerm"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the console is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// SetDisplayOn blanks the emulated display when on is false.
func (d *Dev) SetDisplayOn(on bool) {
	d.on.Store(on)
	d.MarkDirty(1 << d.BrightnessBit())
}

// DisplayOn reports the state set by SetDisplayOn.
func (d *Dev) DisplayOn() bool {
	return d.on.Load()
}

// Flush redraws the whole display in place.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	taken := d.TakeDirty()
	if err := d.refresh(); err != nil {
		d.MarkDirty(taken)
		return fmt.Errorf("segterm: %w", err)
	}
	return nil
}

// FlushIncremental redraws the display if anything changed since the last
// flush. A terminal has no per digit addressing.
func (d *Dev) FlushIncremental() error {
	if !d.IsFlushRequired() {
		return nil
	}
	return d.Flush()
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	if d.drawn {
		// Move back to the top of the previous drawing.
		fmt.Fprintf(&d.buf, "\033[%dA", cellHeight)
	}
	n := d.NumDigits()
	for row := range cellHeight {
		_, _ = d.buf.WriteString("\r\033[0m")
		for pos := range n {
			c := d.digitColor(pos)
			p := d.PatternAt(pos)
			for _, seg := range cells[row] {
				if seg >= 0 && d.on.Load() && p&(1<<seg) != 0 {
					_, _ = io.WriteString(&d.buf, d.palette.Block(c))
				} else {
					_, _ = io.WriteString(&d.buf, d.palette.Block(d.unlit))
				}
			}
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	if err == nil {
		d.drawn = true
	}
	return err
}

// digitColor scales the lit color with the brightness of the digit.
func (d *Dev) digitColor(pos int) color.NRGBA {
	b := uint32(d.BrightnessAt(pos))
	scale := func(v uint8) uint8 {
		return uint8(uint32(v) * b / MaxBrightness)
	}
	return color.NRGBA{R: scale(d.lit.R), G: scale(d.lit.G), B: scale(d.lit.B), A: 255}
}

var _ fmt.Stringer = &Dev{}
