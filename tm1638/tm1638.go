// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tm1638 controls TM1638 based LED and key modules, like the "LED&KEY"
// board with 8 digits, 8 LEDs and 8 buttons.
//
// Dev is for common cathode digits, where each grid line of the chip drives
// one digit. AnodeDev is for common anode digits, like the "QYF-TM1638"
// board, where each grid line drives one segment of every digit.
//
// # Datasheet
//
// https://futuranet.it/futurashop/image/catalog/data/Download/TM1638_V1.3_EN.pdf
package tm1638

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

const (
	dataCmdAutoAddress  byte = 0x40
	dataCmdReadKeys     byte = 0x42
	dataCmdFixedAddress byte = 0x44
	addressCmd          byte = 0xc0
	displayCmd          byte = 0x80
	displayOn           byte = 0x08

	// keyScanWait is the pause between the read command and the first read
	// clock; the datasheet asks for at least 2µs.
	keyScanWait = 3 * time.Microsecond

	// MaxDigits is the number of grid lines of the chip.
	MaxDigits = 8
	// MaxBrightness is the highest of the 8 brightness levels.
	MaxBrightness = 7
)

var sleep = time.Sleep

// Bus is the three wire protocol of the chip. tmi.ThreeWire implements it.
type Bus interface {
	BeginTransaction() error
	EndTransaction() error
	Write(b byte) error
	Read() (byte, error)
}

// Opts configures a Dev.
type Opts struct {
	// Remap is the logical to physical digit table. nil means digits are
	// wired in order.
	Remap []int
}

var errTooManyDigits = errors.New("tm1638: at most 8 digits are supported")

// chip is the state shared by Dev and AnodeDev.
type chip struct {
	*ledmodule.Module

	bus Bus
	on  atomic.Bool
	mu  sync.Mutex
}

func (c *chip) init(bus Bus, numDigits int) error {
	if numDigits > MaxDigits {
		return errTooManyDigits
	}
	m, err := ledmodule.New(numDigits, MaxBrightness)
	if err != nil {
		return err
	}
	m.SetBrightness(MaxBrightness)
	c.Module = m
	c.bus = bus
	c.on.Store(true)
	return nil
}

// SetDisplayOn turns the display on or off at the next flush without
// changing the brightness.
func (c *chip) SetDisplayOn(on bool) {
	c.on.Store(on)
	c.MarkDirty(1 << c.BrightnessBit())
}

// DisplayOn reports the on/off state set by SetDisplayOn.
func (c *chip) DisplayOn() bool {
	return c.on.Load()
}

// ReadButtons returns the 32 bit key scan data, first byte read in the low
// byte. On the LED&KEY board S1 to S4 are bit 0 of each byte and S5 to S8
// are bit 4.
func (c *chip) ReadButtons() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.bus.BeginTransaction(); err != nil {
		return 0, err
	}
	err := c.bus.Write(dataCmdReadKeys)
	if err == nil {
		sleep(keyScanWait)
	}
	var v uint32
	for i := 0; i < 4 && err == nil; i++ {
		var b byte
		b, err = c.bus.Read()
		v |= uint32(b) << (8 * i)
	}
	if err2 := c.bus.EndTransaction(); err == nil {
		err = err2
	}
	return v, err
}

func (c *chip) begin() {
	c.Clear()
	c.on.Store(true)
	c.SetBrightness(MaxBrightness)
	c.MarkAllDirty()
}

func (c *chip) end() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on.Store(false)
	return c.tx(c.displayControl())
}

func (c *chip) displayControl() byte {
	v := displayCmd | c.Brightness()&MaxBrightness
	if c.on.Load() {
		v |= displayOn
	}
	return v
}

// tx writes w in one strobe. The strobe is released even after an error.
func (c *chip) tx(w ...byte) error {
	if err := c.bus.BeginTransaction(); err != nil {
		return err
	}
	var err error
	for _, b := range w {
		if err = c.bus.Write(b); err != nil {
			break
		}
	}
	if err2 := c.bus.EndTransaction(); err == nil {
		err = err2
	}
	return err
}

// flush sends the 16 display registers, then the display control.
func (c *chip) flush(registers []byte) error {
	taken := c.TakeDirty()
	err := c.tx(dataCmdAutoAddress)
	if err == nil {
		err = c.tx(append([]byte{addressCmd}, registers...)...)
	}
	if err == nil {
		err = c.tx(c.displayControl())
	}
	if err != nil {
		c.MarkDirty(taken)
	}
	return err
}

// Dev is a TM1638 module with common cathode digits.
type Dev struct {
	chip
	remap *ledmodule.Remap
	stage int
}

// New returns a Dev with numDigits digits. opts may be nil.
func New(bus Bus, numDigits int, opts *Opts) (*Dev, error) {
	d := &Dev{}
	if err := d.init(bus, numDigits); err != nil {
		return nil, err
	}
	if opts != nil && opts.Remap != nil {
		if len(opts.Remap) != numDigits {
			return nil, fmt.Errorf("tm1638: remap table has %d entries, expected %d", len(opts.Remap), numDigits)
		}
		var err error
		if d.remap, err = ledmodule.NewRemap(opts.Remap); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("TM1638{%v, digits:%d}", d.bus, d.NumDigits())
}

// Begin blanks the digits, sets full brightness with the display on, and
// restarts the incremental flush. Nothing is sent until the next flush.
func (d *Dev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.begin()
	d.stage = 0
	return nil
}

// End turns the display off.
func (d *Dev) End() error {
	return d.end()
}

// Flush sends every digit, then the brightness, whether they changed or not.
// Grid i is at even address 2*i; the odd addresses hold SEG9 and SEG10 which
// are sent as 0.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.NumDigits()
	regs := make([]byte, 2*n)
	for chipPos := range n {
		regs[2*chipPos] = d.PatternAt(d.remap.Logical(chipPos))
	}
	return d.flush(regs)
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
		err = d.tx(addressCmd|byte(2*stage), d.PatternAt(pos))
	}
	if err != nil {
		d.MarkDirty(1 << pos)
	}
	return err
}

// AnodeDev is a TM1638 module with common anode digits: grid line g drives
// segment g of every digit, and segment line i drives digit i.
//
// Every flush rewrites all the grid lines, so there is no incremental flush.
type AnodeDev struct {
	chip
}

// NewAnode returns an AnodeDev with numDigits digits.
func NewAnode(bus Bus, numDigits int) (*AnodeDev, error) {
	d := &AnodeDev{}
	if err := d.init(bus, numDigits); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AnodeDev) String() string {
	return fmt.Sprintf("TM1638Anode{%v, digits:%d}", d.bus, d.NumDigits())
}

// Begin blanks the digits and sets full brightness with the display on.
func (d *AnodeDev) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.begin()
	return nil
}

// End turns the display off.
func (d *AnodeDev) End() error {
	return d.end()
}

// Flush transposes the digits into grid patterns and sends them, then the
// brightness.
func (d *AnodeDev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	patterns := make([]byte, d.NumDigits())
	for i := range patterns {
		patterns[i] = d.PatternAt(i)
	}
	regs := make([]byte, 16)
	for grid, p := range transpose(patterns) {
		regs[2*grid] = p
	}
	return d.flush(regs)
}

// transpose returns the 8 grid patterns for the digit patterns. Digit 0 is
// on SEG1, the most significant bit of a grid pattern.
func transpose(digits []byte) [8]byte {
	var grids [8]byte
	for grid := range grids {
		for digit, p := range digits {
			if p&(1<<grid) != 0 {
				grids[grid] |= 0x80 >> digit
			}
		}
	}
	return grids
}
