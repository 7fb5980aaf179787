// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softspi implements a write only spi.Port by toggling three gpio
// pins, the way shiftOut() is used with 74HC595 shift registers and MAX7219
// controllers when no hardware SPI is free.
//
// The wiring to a 74HC595 is:
//
//	latch -- ST_CP / RCK (pin 12)
//	clock -- SH_CP / SRCK (pin 11)
//	data  -- DS / SER (pin 14)
//
// Each Tx is framed by one latch pulse, so a 16 bit transfer to two chained
// registers updates both outputs at once.
package softspi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrReadNotSupported is returned when Tx is given a read buffer.
	ErrReadNotSupported = errors.New("softspi: read is not supported")
	// ErrModeNotSupported is returned by Connect for anything but mode 0 with
	// 8 bit words.
	ErrModeNotSupported = errors.New("softspi: only mode 0 with 8 bits per word is supported")
)

// Port is a software SPI port.
type Port struct {
	latch gpio.PinOut
	clk   gpio.PinOut
	data  gpio.PinOut
}

// New returns a Port using the given pins.
func New(latch, clk, data gpio.PinOut) *Port {
	return &Port{latch: latch, clk: clk, data: data}
}

func (p *Port) String() string {
	return fmt.Sprintf("softspi{%s, %s, %s}", p.latch, p.clk, p.data)
}

// Connect implements spi.Port. f sets the clock rate; 0 toggles as fast as
// the pins allow.
func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if mode&spi.Mode3 != spi.Mode0 || bits != 8 {
		return nil, ErrModeNotSupported
	}
	c := &Conn{port: p}
	if f > 0 {
		c.delay = f.Period() / 2
	}
	if err := p.latch.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("softspi: %w", err)
	}
	if err := p.clk.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("softspi: %w", err)
	}
	return c, nil
}

// Conn is a connection on a software SPI port.
type Conn struct {
	mu    sync.Mutex
	port  *Port
	delay time.Duration
}

func (c *Conn) String() string {
	return c.port.String()
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return conn.Half
}

// Tx shifts w out MSB first inside a single latch pulse.
func (c *Conn) Tx(w, r []byte) error {
	if len(r) != 0 {
		return ErrReadNotSupported
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.port.latch.Out(gpio.Low); err != nil {
		return fmt.Errorf("softspi: %w", err)
	}
	if err := c.shift(w); err != nil {
		return err
	}
	return c.latchHigh()
}

// TxPackets implements spi.Conn. Packets with KeepCS set share the latch
// pulse of the following packet.
func (c *Conn) TxPackets(p []spi.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	latched := false
	for _, pkt := range p {
		if len(pkt.R) != 0 {
			return ErrReadNotSupported
		}
		if !latched {
			if err := c.port.latch.Out(gpio.Low); err != nil {
				return fmt.Errorf("softspi: %w", err)
			}
			latched = true
		}
		if err := c.shift(pkt.W); err != nil {
			return err
		}
		if !pkt.KeepCS {
			if err := c.latchHigh(); err != nil {
				return err
			}
			latched = false
		}
	}
	if latched {
		return c.latchHigh()
	}
	return nil
}

func (c *Conn) shift(w []byte) error {
	for _, b := range w {
		for i := 7; i >= 0; i-- {
			if err := c.port.data.Out(gpio.Level(b&(1<<i) != 0)); err != nil {
				return fmt.Errorf("softspi: %w", err)
			}
			if err := c.pulse(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Conn) pulse() error {
	if err := c.port.clk.Out(gpio.High); err != nil {
		return fmt.Errorf("softspi: %w", err)
	}
	c.wait()
	if err := c.port.clk.Out(gpio.Low); err != nil {
		return fmt.Errorf("softspi: %w", err)
	}
	c.wait()
	return nil
}

func (c *Conn) latchHigh() error {
	if err := c.port.latch.Out(gpio.High); err != nil {
		return fmt.Errorf("softspi: %w", err)
	}
	return nil
}

func (c *Conn) wait() {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
}

var _ spi.Port = &Port{}
var _ spi.Conn = &Conn{}
