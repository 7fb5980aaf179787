// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softwire implements an I2C controller by bit-banging two open drain
// gpio pins.
//
// It is meant for boards where the hardware I2C pins are taken, to talk to
// slow devices like an HT16K33 LED backpack. Clock stretching is not
// supported.
package softwire

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultSpeed is the initial bus speed.
const DefaultSpeed = 100 * physic.KiloHertz

// ErrNack is returned when the addressed device did not acknowledge a byte.
var ErrNack = errors.New("softwire: byte not acknowledged")

var errInvalidSpeed = errors.New("softwire: invalid speed")

// Bus is an i2c.Bus over an SCL and an SDA pin with pull-up resistors.
//
// A line is never driven high: it is released by switching the pin to input
// and pulled low by driving it low.
type Bus struct {
	scl gpio.PinIO
	sda gpio.PinIO

	mu    sync.Mutex
	delay time.Duration
}

// New returns a Bus running at DefaultSpeed with both lines released.
func New(scl, sda gpio.PinIO) (*Bus, error) {
	b := &Bus{scl: scl, sda: sda, delay: DefaultSpeed.Period() / 2}
	if err := b.sclHigh(); err != nil {
		return nil, err
	}
	if err := b.sdaHigh(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("softwire{%s, %s}", b.scl, b.sda)
}

// SetSpeed changes the clock frequency. It is an upper bound since every pin
// change also takes time.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errInvalidSpeed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = f.Period() / 2
	return nil
}

// Tx writes w to the device at addr, then reads len(r) bytes with a repeated
// start if r is not empty.
//
// The stop condition is sent even when the device does not acknowledge.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("softwire: invalid address 0x%x", addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.tx(byte(addr), w, r)
	if serr := b.stop(); err == nil {
		err = serr
	}
	return err
}

func (b *Bus) tx(addr byte, w, r []byte) error {
	if len(w) != 0 || len(r) == 0 {
		if err := b.start(); err != nil {
			return err
		}
		if err := b.writeByte(addr << 1); err != nil {
			return err
		}
		for _, c := range w {
			if err := b.writeByte(c); err != nil {
				return err
			}
		}
	}
	if len(r) == 0 {
		return nil
	}
	if err := b.start(); err != nil {
		return err
	}
	if err := b.writeByte(addr<<1 | 1); err != nil {
		return err
	}
	for i := range r {
		c, err := b.readByte(i != len(r)-1)
		if err != nil {
			return err
		}
		r[i] = c
	}
	return nil
}

// start emits a start condition. When the bus is already owned, it is a
// repeated start.
func (b *Bus) start() error {
	for _, f := range []func() error{b.sdaHigh, b.sclHigh, b.sdaLow, b.sclLow} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) stop() error {
	for _, f := range []func() error{b.sdaLow, b.sclHigh, b.sdaHigh} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// writeByte sends c MSB first and checks the acknowledge bit.
func (b *Bus) writeByte(c byte) error {
	for i := range 8 {
		if err := b.writeBit(c&(0x80>>i) != 0); err != nil {
			return err
		}
	}
	if err := b.sdaHigh(); err != nil {
		return err
	}
	if err := b.sclHigh(); err != nil {
		return err
	}
	nack := b.sda.Read() == gpio.High
	if err := b.sclLow(); err != nil {
		return err
	}
	if nack {
		return ErrNack
	}
	return nil
}

// readByte reads one byte MSB first and acknowledges it if ack is set.
func (b *Bus) readByte(ack bool) (byte, error) {
	if err := b.sdaHigh(); err != nil {
		return 0, err
	}
	var c byte
	for range 8 {
		if err := b.sclHigh(); err != nil {
			return 0, err
		}
		c <<= 1
		if b.sda.Read() == gpio.High {
			c |= 1
		}
		if err := b.sclLow(); err != nil {
			return 0, err
		}
	}
	return c, b.writeBit(!ack)
}

func (b *Bus) writeBit(high bool) error {
	var err error
	if high {
		err = b.sdaHigh()
	} else {
		err = b.sdaLow()
	}
	if err == nil {
		err = b.sclHigh()
	}
	if err == nil {
		err = b.sclLow()
	}
	return err
}

func (b *Bus) release(p gpio.PinIO) error {
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("softwire: %w", err)
	}
	time.Sleep(b.delay)
	return nil
}

func (b *Bus) pullLow(p gpio.PinIO) error {
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("softwire: %w", err)
	}
	time.Sleep(b.delay)
	return nil
}

func (b *Bus) sclHigh() error { return b.release(b.scl) }
func (b *Bus) sclLow() error  { return b.pullLow(b.scl) }
func (b *Bus) sdaHigh() error { return b.release(b.sda) }
func (b *Bus) sdaLow() error  { return b.pullLow(b.sda) }

var _ i2c.Bus = &Bus{}
