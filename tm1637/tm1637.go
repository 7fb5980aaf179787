// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tm1637 controls a TM1637 based 4 or 6 digit seven-segment LED
// module.
//
// The TM1637 multiplexes the digits itself. The driver keeps the digits in a
// ledmodule.Module and sends them to the chip with Flush, or one digit per call
// with FlushIncremental to bound the time spent in a single call.
//
// # Datasheet
//
// https://www.mcielectronics.cl/website_MCI/static/documents/Datasheet_TM1637.pdf
package tm1637

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

const (
	dataCmdAutoAddress  byte = 0x40
	dataCmdReadKeys     byte = 0x42
	dataCmdFixedAddress byte = 0x44
	addressCmd          byte = 0xc0
	displayCmd          byte = 0x80
	displayOn           byte = 0x08

	// MaxDigits is the number of digit registers of the chip.
	MaxDigits = 6
	// MaxBrightness is the highest of the 8 brightness levels.
	MaxBrightness = 7
)

// Bus is the two wire protocol of the chip. tmi.TwoWire implements it.
type Bus interface {
	StartCondition() error
	StopCondition() error
	SendByte(b byte) error
	ReadByte() (byte, error)
}

// Opts configures a Dev.
type Opts struct {
	// Remap is the logical to physical digit table of the module, for example
	// ledmodule.RemapTM1637SixDigit. nil means digits are wired in order.
	Remap []int
}

// Dev is a TM1637 module.
//
// Patterns and brightness are set through the embedded Module and sent to
// the chip by Flush or FlushIncremental.
type Dev struct {
	*ledmodule.Module

	bus   Bus
	remap *ledmodule.Remap
	on    atomic.Bool

	mu    sync.Mutex
	stage int
}

var errTooManyDigits = errors.New("tm1637: at most 6 digits are supported")

// New returns a Dev with numDigits digits. opts may be nil.
func New(bus Bus, numDigits int, opts *Opts) (*Dev, error) {
	if numDigits > MaxDigits {
		return nil, errTooManyDigits
	}
	m, err := ledmodule.New(numDigits, MaxBrightness)
	if err != nil {
		return nil, err
	}
	d := &Dev{Module: m, bus: bus}
	if opts != nil && opts.Remap != nil {
		if len(opts.Remap) != numDigits {
			return nil, fmt.Errorf("tm1637: remap table has %d entries, expected %d", len(opts.Remap), numDigits)
		}
		if d.remap, err = ledmodule.NewRemap(opts.Remap); err != nil {
			return nil, err
		}
	}
	d.on.Store(true)
	m.SetBrightness(MaxBrightness)
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("TM1637{%v, digits:%d}", d.bus, d.NumDigits())
}

// Begin blanks the digits, sets full brightness with the display on, and
// restarts the incremental flush. Nothing is sent until the next flush.
func (d *Dev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Clear()
	d.on.Store(true)
	d.SetBrightness(MaxBrightness)
	d.MarkAllDirty()
	d.stage = 0
	return nil
}

// End turns the display off.
func (d *Dev) End() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on.Store(false)
	return d.tx(d.displayControl())
}

// SetDisplayOn turns the display on or off at the next flush without
// changing the brightness.
func (d *Dev) SetDisplayOn(on bool) {
	d.on.Store(on)
	d.MarkDirty(1 << d.BrightnessBit())
}

// DisplayOn reports the on/off state set by SetDisplayOn.
func (d *Dev) DisplayOn() bool {
	return d.on.Load()
}

// Flush sends every digit, then the brightness, whether they changed or not.
// The dirty bits are cleared only if the chip acknowledged everything.
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
	if err := d.tx(d.displayControl()); err != nil {
		return err
	}
	if err := d.tx(dataCmdAutoAddress); err != nil {
		return err
	}
	n := d.NumDigits()
	w := make([]byte, 0, n+1)
	w = append(w, addressCmd)
	for chipPos := range n {
		w = append(w, d.PatternAt(d.remap.Logical(chipPos)))
	}
	return d.tx(w...)
}

// FlushIncremental sends at most one digit or the brightness, and only if it
// changed. Each call moves to the next slot, so NumDigits()+1 calls visit
// everything.
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
		if err := d.tx(d.displayControl()); err != nil {
			d.MarkDirty(1 << bit)
			return err
		}
		return nil
	}

	pos := d.remap.Logical(stage)
	if !d.TakeDirtyBit(pos) {
		return nil
	}
	err := d.tx(dataCmdFixedAddress)
	if err == nil {
		err = d.tx(addressCmd|byte(stage), d.PatternAt(pos))
	}
	if err != nil {
		d.MarkDirty(1 << pos)
	}
	return err
}

// ReadKeys returns the key scan code. The chip returns 0xff when no key is
// pressed.
func (d *Dev) ReadKeys() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bus.StartCondition(); err != nil {
		return 0, err
	}
	err := d.bus.SendByte(dataCmdReadKeys)
	var b byte
	if err == nil {
		b, err = d.bus.ReadByte()
	}
	if err2 := d.bus.StopCondition(); err == nil {
		err = err2
	}
	return b, err
}

func (d *Dev) displayControl() byte {
	c := displayCmd | d.Brightness()&MaxBrightness
	if d.on.Load() {
		c |= displayOn
	}
	return c
}

// tx sends w in one start/stop frame. The stop condition is sent even after
// an error so the bus returns to idle.
func (d *Dev) tx(w ...byte) error {
	if err := d.bus.StartCondition(); err != nil {
		return err
	}
	var err error
	for _, b := range w {
		if err = d.bus.SendByte(b); err != nil {
			break
		}
	}
	if err2 := d.bus.StopCondition(); err == nil {
		err = err2
	}
	return err
}
