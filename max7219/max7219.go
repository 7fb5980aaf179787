// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// The max7219 package drives seven-segment displays connected to one or more
// daisy-chained Maxim MAX7219/MAX7221 controllers. The chip multiplexes up to
// 8 digits by itself; the driver keeps the segment patterns in a
// ledmodule.Module and writes them to the digit registers on Flush.
//
// The chip is used in no-decode mode: every pattern is sent as raw segments.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/MAX7219-MAX7221.pdf
package max7219

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

const (
	_REGISTER_NOOP         byte = 0x0
	_REGISTER_DIGIT0       byte = 0x1
	_REGISTER_DECODE_MODE  byte = 0x9
	_REGISTER_INTENSITY    byte = 0xa
	_REGISTER_SCAN_LIMIT   byte = 0xb
	_REGISTER_SHUTDOWN     byte = 0xc
	_REGISTER_DISPLAY_TEST byte = 0xf

	// MaxDigits is the number of digit registers of one unit.
	MaxDigits = 8
	// MaxBrightness is the highest of the 16 intensity levels.
	MaxBrightness = 15
)

// Opts configures a Dev.
type Opts struct {
	// Remap is the logical to physical digit table of one unit. Most 8 digit
	// modules have digit 0 on the right and need ledmodule.RemapReversed(8).
	// nil means logical digit i is in digit register i.
	Remap []int
}

// Type for a Maxim MAX7219/MAX7221 device.
//
// With cascaded units, logical digits 0 to numDigits-1 are on the unit
// connected to the controller, the next numDigits on the following unit, and
// so on.
type Dev struct {
	*ledmodule.Module

	conn spi.Conn
	// units is the number of 7219 units daisy-chained together.
	units int
	// The number of digits of each unit.
	digits int
	remap  *ledmodule.Remap
	on     atomic.Bool

	mu    sync.Mutex
	stage int
}

// NewSPI creates a new Max7219 using the specified spi.Port. units is the number
// of Max7219 chips daisy-chained together. numDigits is the number of digits
// displayed by each of them. opts may be nil.
func NewSPI(p spi.Port, units, numDigits int, opts *Opts) (*Dev, error) {
	d, err := newDev(units, numDigits, opts)
	if err != nil {
		return nil, err
	}
	// It works in Mode0, Mode2 and Mode3.
	if d.conn, err = p.Connect(10*physic.MegaHertz, spi.Mode0, 8); err != nil {
		return nil, fmt.Errorf("max7219: %w", err)
	}
	return d, nil
}

// New creates a new Max7219 on an already connected spi.Conn, like a
// softspi.Conn.
func New(c spi.Conn, units, numDigits int, opts *Opts) (*Dev, error) {
	d, err := newDev(units, numDigits, opts)
	if err != nil {
		return nil, err
	}
	d.conn = c
	return d, nil
}

// newDev validates the geometry and the remap table, without touching the
// bus.
func newDev(units, numDigits int, opts *Opts) (*Dev, error) {
	if units <= 0 {
		return nil, errors.New("max7219: invalid value for number of cascaded units")
	}
	if numDigits <= 0 || numDigits > MaxDigits {
		return nil, errors.New("max7219: invalid value for number of digits")
	}
	m, err := ledmodule.New(units*numDigits, MaxBrightness)
	if err != nil {
		return nil, fmt.Errorf("max7219: %w", err)
	}
	d := &Dev{Module: m, units: units, digits: numDigits}
	if opts != nil && opts.Remap != nil {
		if len(opts.Remap) != numDigits {
			return nil, fmt.Errorf("max7219: remap table has %d entries, expected %d", len(opts.Remap), numDigits)
		}
		if d.remap, err = ledmodule.NewRemap(opts.Remap); err != nil {
			return nil, err
		}
	}
	d.on.Store(true)
	m.SetBrightness(MaxBrightness / 2)
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("MAX7219{%s, units:%d, digits:%d}", d.conn, d.units, d.digits)
}

// Begin puts the display in the default mode: no decoding, every digit
// scanned, intensity at half, and normal operation. The digits are blanked at
// the next flush.
func (d *Dev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Clear()
	d.on.Store(true)
	d.SetBrightness(MaxBrightness / 2)
	d.MarkAllDirty()
	d.stage = 0

	var initCommands = [][]byte{
		{_REGISTER_DISPLAY_TEST, 0x0},
		{_REGISTER_SHUTDOWN, 0x00},
		{_REGISTER_INTENSITY, d.Brightness()},
		{_REGISTER_SCAN_LIMIT, byte(d.digits - 1)},
		{_REGISTER_DECODE_MODE, 0x00},
		{_REGISTER_SHUTDOWN, 0x01}}

	for _, cmd := range initCommands {
		if err := d.sendCommand(cmd[0], cmd[1]); err != nil {
			return err
		}
	}
	return nil
}

// End puts every unit in shutdown mode.
func (d *Dev) End() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on.Store(false)
	return d.sendCommand(_REGISTER_SHUTDOWN, 0)
}

// SetDisplayOn leaves or enters shutdown mode at the next flush. The digit
// registers are retained while shut down.
func (d *Dev) SetDisplayOn(on bool) {
	d.on.Store(on)
	d.MarkDirty(1 << d.BrightnessBit())
}

// DisplayOn reports the state set by SetDisplayOn.
func (d *Dev) DisplayOn() bool {
	return d.on.Load()
}

// TestDisplay turns on the 7219 display mode which set all segments (or LEDs) on,
// and  the intensity to maximum. If you're using multiple units, you should be
// aware  of the current draw, and limit how long you leave this on.
func (d *Dev) TestDisplay(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		return d.sendCommand(_REGISTER_DISPLAY_TEST, 1)
	}
	return d.sendCommand(_REGISTER_DISPLAY_TEST, 0)
}

// Flush writes every digit register of every unit, then the intensity and
// shutdown registers, whether they changed or not.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	taken := d.TakeDirty()
	if err := d.flush(); err != nil {
		d.MarkDirty(taken)
		return err
	}
	return nil
}

func (d *Dev) flush() error {
	for reg := range d.digits {
		w := make([]byte, 0, 2*d.units)
		for unit := d.units - 1; unit >= 0; unit-- {
			w = append(w, _REGISTER_DIGIT0+byte(reg), convertPattern(d.PatternAt(d.logical(unit, reg))))
		}
		if err := d.tx(w); err != nil {
			return err
		}
	}
	return d.sendBrightness()
}

// FlushIncremental writes at most one digit register, or the intensity and
// shutdown registers, and only if it changed. Each call moves to the next
// slot, so NumDigits()+1 calls visit everything.
func (d *Dev) FlushIncremental() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.NumDigits()
	stage := d.stage
	d.stage = (d.stage + 1) % (n + 1)

	if stage == n {
		bit := d.BrightnessBit()
		if !d.TakeDirtyBit(bit) {
			return nil
		}
		if err := d.sendBrightness(); err != nil {
			d.MarkDirty(1 << bit)
			return err
		}
		return nil
	}

	unit, reg := stage/d.digits, stage%d.digits
	pos := d.logical(unit, reg)
	if !d.TakeDirtyBit(pos) {
		return nil
	}
	if err := d.writeUnit(unit, _REGISTER_DIGIT0+byte(reg), convertPattern(d.PatternAt(pos))); err != nil {
		d.MarkDirty(1 << pos)
		return err
	}
	return nil
}

// logical returns the logical digit shown by digit register reg of unit.
func (d *Dev) logical(unit, reg int) int {
	return unit*d.digits + d.remap.Logical(reg)
}

func (d *Dev) sendBrightness() error {
	if err := d.sendCommand(_REGISTER_INTENSITY, d.Brightness()&MaxBrightness); err != nil {
		return err
	}
	var on byte
	if d.on.Load() {
		on = 1
	}
	return d.sendCommand(_REGISTER_SHUTDOWN, on)
}

// sendCommand writes to a data register or command register.
// Data registers are 1-8, and command registers are > 8.
// If multiple units are daisychained together, the command
// is repeated and sent to all units.
func (d *Dev) sendCommand(register, data byte) error {
	w := make([]byte, d.units*2)
	for ix := range d.units {
		w[ix*2] = register
		w[ix*2+1] = data
	}
	return d.tx(w)
}

// writeUnit writes a register of a single unit in the chain. The other units
// receive a no-op.
func (d *Dev) writeUnit(offset int, register, data byte) error {
	w := make([]byte, 0, 2*d.units)
	for unit := d.units - 1; unit >= 0; unit-- {
		if unit == offset {
			w = append(w, register, data)
		} else {
			w = append(w, _REGISTER_NOOP, 0)
		}
	}
	return d.tx(w)
}

func (d *Dev) tx(w []byte) error {
	if err := d.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("max7219: %w", err)
	}
	return nil
}

// convertPattern converts a pattern with segment A in bit 0 to the order of
// the digit registers: DP in bit 7, A in bit 6 down to G in bit 0.
func convertPattern(pattern byte) byte {
	var result byte
	for range 7 {
		result <<= 1
		result |= pattern & 1
		pattern >>= 1
	}
	return result | pattern<<7
}
