// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tmi

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ThreeWire talks to a TM1638 over STB, CLK and DIO.
type ThreeWire struct {
	stb   gpio.PinIO
	clk   gpio.PinIO
	dio   gpio.PinIO
	delay time.Duration
}

// NewThreeWire returns a ThreeWire using the given pins.
func NewThreeWire(stb, clk, dio gpio.PinIO, delay time.Duration) *ThreeWire {
	return &ThreeWire{stb: stb, clk: clk, dio: dio, delay: delay}
}

func (t *ThreeWire) String() string {
	return fmt.Sprintf("TM1638{%s, %s, %s}", t.stb, t.clk, t.dio)
}

// Begin drives STB and CLK high and DIO low.
func (t *ThreeWire) Begin() error {
	if err := t.out(t.stb, gpio.High); err != nil {
		return err
	}
	if err := t.out(t.clk, gpio.High); err != nil {
		return err
	}
	return t.out(t.dio, gpio.Low)
}

// End releases all the lines.
func (t *ThreeWire) End() error {
	for _, p := range []gpio.PinIO{t.stb, t.clk, t.dio} {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// BeginTransaction selects the chip by pulling STB low.
func (t *ThreeWire) BeginTransaction() error {
	return t.out(t.stb, gpio.Low)
}

// EndTransaction deselects the chip.
func (t *ThreeWire) EndTransaction() error {
	return t.out(t.stb, gpio.High)
}

// Write clocks out b LSB first. The chip latches DIO on the rising edge of
// CLK.
func (t *ThreeWire) Write(b byte) error {
	for range 8 {
		if err := t.out(t.clk, gpio.Low); err != nil {
			return err
		}
		if err := t.out(t.dio, gpio.Level(b&1 != 0)); err != nil {
			return err
		}
		if err := t.out(t.clk, gpio.High); err != nil {
			return err
		}
		b >>= 1
	}
	return nil
}

// Read clocks in one byte LSB first. The chip shifts out on the falling edge
// of CLK.
func (t *ThreeWire) Read() (byte, error) {
	if err := t.dio.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return 0, wrap(err)
	}
	var b byte
	for i := range 8 {
		if err := t.out(t.clk, gpio.Low); err != nil {
			return 0, err
		}
		if t.dio.Read() == gpio.High {
			b |= 1 << i
		}
		if err := t.out(t.clk, gpio.High); err != nil {
			return 0, err
		}
	}
	return b, nil
}

func (t *ThreeWire) out(p gpio.PinIO, l gpio.Level) error {
	if err := p.Out(l); err != nil {
		return wrap(err)
	}
	delay(t.delay)
	return nil
}
