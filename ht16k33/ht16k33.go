// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ht16k33 controls a 4 digit seven-segment display with a center
// colon driven by a Holtek HT16K33 over I2C, like the Adafruit 0.56" and
// 1.2" 4-digit backpacks.
//
// On these backpacks COM0, COM1, COM3 and COM4 drive the 4 digits, and bit 1
// of COM2 drives the colon.
//
// # Datasheet
//
// https://www.holtek.com/documents/10179/116711/HT16K33v120.pdf
package ht16k33

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/i2c"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

const (
	cmdSystemOff    byte = 0x20
	cmdSystemOn     byte = 0x21
	cmdDisplaySetup byte = 0x80
	displayOn       byte = 0x01
	cmdBrightness   byte = 0xe0

	colonBit byte = 0x02

	// DefaultAddress is the address with A0-A2 open.
	DefaultAddress uint16 = 0x70
	// NumDigits is the number of digits of the backpack.
	NumDigits = 4
	// MaxBrightness is the highest of the 16 dimming levels.
	MaxBrightness = 15
)

// chipPos is the COM line of each digit.
var chipPos = [NumDigits]int{0, 1, 3, 4}

// BlinkRate is the blinking frequency of the whole display.
type BlinkRate byte

const (
	BlinkOff BlinkRate = iota
	Blink2Hz
	Blink1Hz
	BlinkHalfHz
)

func (b BlinkRate) String() string {
	switch b {
	case BlinkOff:
		return "Off"
	case Blink2Hz:
		return "2Hz"
	case Blink1Hz:
		return "1Hz"
	case BlinkHalfHz:
		return "0.5Hz"
	default:
		return fmt.Sprintf("BlinkRate(%d)", byte(b))
	}
}

// Opts configures a Dev.
type Opts struct {
	// Addr defaults to DefaultAddress.
	Addr uint16
	// EnableColon shows the decimal point of digit 1 as the center colon.
	EnableColon bool
}

// DefaultOpts is the default device configuration.
var DefaultOpts = Opts{Addr: DefaultAddress}

var errInvalidBlinkRate = errors.New("ht16k33: invalid blink rate")

// Dev is an HT16K33 4 digit backpack.
type Dev struct {
	*ledmodule.Module

	d     i2c.Dev
	colon atomic.Bool
	on    atomic.Bool
	blink atomic.Uint32

	mu    sync.Mutex
	stage int
}

// New returns a Dev on bus. opts may be nil for DefaultOpts.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddress
	}
	m, err := ledmodule.New(NumDigits, MaxBrightness)
	if err != nil {
		return nil, err
	}
	d := &Dev{Module: m, d: i2c.Dev{Bus: bus, Addr: addr}}
	d.colon.Store(opts.EnableColon)
	d.on.Store(true)
	m.SetBrightness(MaxBrightness)
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("HT16K33{%s}", &d.d)
}

// Begin starts the oscillator and turns the display on. The digits are
// blanked at the next flush.
func (d *Dev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Clear()
	d.on.Store(true)
	d.MarkAllDirty()
	d.stage = 0
	if err := d.write(cmdSystemOn); err != nil {
		return err
	}
	return d.write(d.displaySetup())
}

// End turns the display off and stops the oscillator.
func (d *Dev) End() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on.Store(false)
	if err := d.write(cmdDisplaySetup); err != nil {
		return err
	}
	return d.write(cmdSystemOff)
}

// EnableColon selects whether the decimal point of digit 1 is shown as the
// colon instead.
func (d *Dev) EnableColon(enable bool) {
	d.colon.Store(enable)
	d.MarkDirty(1 << 1)
}

// SetDisplayOn turns the display on or off at the next flush.
func (d *Dev) SetDisplayOn(on bool) {
	d.on.Store(on)
	d.MarkDirty(1 << d.BrightnessBit())
}

// DisplayOn reports the state set by SetDisplayOn.
func (d *Dev) DisplayOn() bool {
	return d.on.Load()
}

// SetBlinkRate makes the whole display blink, starting at the next flush.
func (d *Dev) SetBlinkRate(b BlinkRate) error {
	if b > BlinkHalfHz {
		return errInvalidBlinkRate
	}
	d.blink.Store(uint32(b))
	d.MarkDirty(1 << d.BrightnessBit())
	return nil
}

// Flush writes the 5 COM lines in one transfer, then the brightness and the
// display setup, whether they changed or not.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	taken := d.TakeDirty()
	err := d.flush()
	if err != nil {
		d.MarkDirty(taken)
	}
	return err
}

func (d *Dev) flush() error {
	colon := d.colon.Load()
	// Each COM line is 16 bits; ROW8-ROW15 are unused.
	w := make([]byte, 1, 11)
	for pos := range 5 {
		w = append(w, patternForChipPos(pos, d.PatternAt(0), d.PatternAt(1), d.PatternAt(2), d.PatternAt(3), colon), 0)
	}
	if err := d.tx(w); err != nil {
		return err
	}
	return d.sendBrightness()
}

// FlushIncremental writes at most one digit, or the brightness and display
// setup, and only if it changed. Each call moves to the next slot, so
// NumDigits+1 calls visit everything.
func (d *Dev) FlushIncremental() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stage := d.stage
	d.stage = (d.stage + 1) % (NumDigits + 1)

	bit := stage
	if stage == NumDigits {
		bit = d.BrightnessBit()
	}
	if !d.TakeDirtyBit(bit) {
		return nil
	}
	var err error
	if stage == NumDigits {
		err = d.sendBrightness()
	} else {
		err = d.writeDigit(stage)
	}
	if err != nil {
		d.MarkDirty(1 << bit)
	}
	return err
}

// writeDigit writes the COM line of a digit. Digit 1 also rewrites COM2 since
// the colon comes from its decimal point.
func (d *Dev) writeDigit(digit int) error {
	colon := d.colon.Load()
	p := [4]byte{d.PatternAt(0), d.PatternAt(1), d.PatternAt(2), d.PatternAt(3)}
	pos := chipPos[digit]
	w := []byte{byte(2 * pos), patternForChipPos(pos, p[0], p[1], p[2], p[3], colon), 0}
	if digit == 1 {
		w = append(w, patternForChipPos(2, p[0], p[1], p[2], p[3], colon), 0)
	}
	return d.tx(w)
}

func (d *Dev) sendBrightness() error {
	if err := d.write(cmdBrightness | d.Brightness()&MaxBrightness); err != nil {
		return err
	}
	return d.write(d.displaySetup())
}

func (d *Dev) displaySetup() byte {
	c := cmdDisplaySetup | byte(d.blink.Load())<<1
	if d.on.Load() {
		c |= displayOn
	}
	return c
}

// patternForChipPos returns the ROW0-ROW7 byte of COM line pos.
func patternForChipPos(pos int, p0, p1, p2, p3 byte, colon bool) byte {
	switch pos {
	case 0:
		return p0
	case 1:
		if colon {
			return p1 &^ ledmodule.DecimalPoint
		}
		return p1
	case 2:
		if colon && p1&ledmodule.DecimalPoint != 0 {
			return colonBit
		}
		return 0
	case 3:
		return p2
	case 4:
		return p3
	default:
		return 0
	}
}

func (d *Dev) write(cmd byte) error {
	return d.tx([]byte{cmd})
}

func (d *Dev) tx(w []byte) error {
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("ht16k33: %w", err)
	}
	return nil
}
