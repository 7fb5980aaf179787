// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/GermanBionicSystems/ledsegment/ht16k33"
	"github.com/GermanBionicSystems/ledsegment/ledmatrix"
	"github.com/GermanBionicSystems/ledsegment/ledmodule"
	"github.com/GermanBionicSystems/ledsegment/max7219"
	"github.com/GermanBionicSystems/ledsegment/rpiopin"
	"github.com/GermanBionicSystems/ledsegment/scanning"
	"github.com/GermanBionicSystems/ledsegment/segterm"
	"github.com/GermanBionicSystems/ledsegment/softspi"
	"github.com/GermanBionicSystems/ledsegment/softwire"
	"github.com/GermanBionicSystems/ledsegment/tm1637"
	"github.com/GermanBionicSystems/ledsegment/tm1638"
	"github.com/GermanBionicSystems/ledsegment/tmi"
)

// display is what every driver has in common.
type display interface {
	fmt.Stringer
	NumDigits() int
	SetPatternAt(pos int, pattern byte)
	PatternAt(pos int) byte
	SetDecimalPointAt(pos int, on bool)
	SetBrightness(b byte)
	BrightnessAt(pos int) byte
	MaxBrightness() byte
	Begin() error
	End() error
	Flush() error
}

// scanned runs a Scanner in the background. Flush is a no-op since the
// scanner picks up changes on the next field.
type scanned struct {
	*scanning.Scanner
	cancel context.CancelFunc
	done   chan error
}

func (s *scanned) Begin() error {
	if err := s.Scanner.Begin(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- s.Run(ctx)
	}()
	return nil
}

func (s *scanned) End() error {
	if s.cancel != nil {
		s.cancel()
		if err := <-s.done; err != nil {
			log.Printf("scanner: %v", err)
		}
	}
	return s.Scanner.End()
}

func (s *scanned) Flush() error {
	return nil
}

// terminal adds Begin and End to segterm.Dev.
type terminal struct {
	*segterm.Dev
}

func (t *terminal) Begin() error {
	t.Clear()
	return t.Flush()
}

func (t *terminal) End() error {
	return t.Halt()
}

type config struct {
	driver      string
	digits      int
	rpio        bool
	clk         string
	dio         string
	stb         string
	spi         string
	i2c         string
	addr        int
	segments    string
	groups      string
	commonAnode bool
	reverse     bool
	subFields   int
	fps         int
}

func (c *config) pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.New("missing pin, try -help")
	}
	if c.rpio {
		n, err := strconv.Atoi(name)
		if err != nil {
			return nil, fmt.Errorf("invalid BCM pin number %q", name)
		}
		return rpiopin.New(n), nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

func (c *config) pins(list string) ([]gpio.PinIO, error) {
	var out []gpio.PinIO
	for _, name := range splitList(list) {
		p, err := c.pin(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func splitList(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *config) remap() []int {
	if c.reverse {
		return ledmodule.RemapReversed(c.digits)
	}
	return nil
}

func (c *config) matrixOpts() *ledmatrix.Opts {
	if c.commonAnode {
		return &ledmatrix.Opts{Elements: ledmatrix.ActiveLow, Groups: ledmatrix.ActiveHigh}
	}
	return &ledmatrix.DefaultOpts
}

// spiConn returns the SPI port named -spi, or a bit-banged one.
func (c *config) spiConn(f physic.Frequency) (spi.Conn, func(), error) {
	if c.spi != "" {
		p, err := spireg.Open(c.spi)
		if err != nil {
			return nil, nil, err
		}
		conn, err := p.Connect(f, spi.Mode0, 8)
		if err != nil {
			_ = p.Close()
			return nil, nil, err
		}
		return conn, func() { _ = p.Close() }, nil
	}
	pins, err := c.pins(strings.Join([]string{c.stb, c.clk, c.dio}, ","))
	if err != nil {
		return nil, nil, err
	}
	if len(pins) != 3 {
		return nil, nil, errors.New("-stb, -clk and -dio are required without -spi")
	}
	conn, err := softspi.New(pins[0], pins[1], pins[2]).Connect(f, spi.Mode0, 8)
	return conn, func() {}, err
}

// i2cBus returns the I²C bus named -i2c, or a bit-banged one.
func (c *config) i2cBus() (i2c.Bus, func(), error) {
	if c.i2c != "" {
		b, err := i2creg.Open(c.i2c)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}
	scl, err := c.pin(c.clk)
	if err != nil {
		return nil, nil, err
	}
	sda, err := c.pin(c.dio)
	if err != nil {
		return nil, nil, err
	}
	b, err := softwire.New(scl, sda)
	return b, func() {}, err
}

func (c *config) scanner(m ledmatrix.Matrix) (display, error) {
	s, err := scanning.New(m, c.digits, &scanning.Opts{SubFields: c.subFields, FramesPerSecond: c.fps})
	if err != nil {
		return nil, err
	}
	return &scanned{Scanner: s}, nil
}

// open returns the display selected by -driver and a function releasing its
// resources. Nothing is left configured when it fails.
func (c *config) open() (display, func(), error) {
	d, closer, err := c.openDriver()
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, nil, err
	}
	return d, closer, nil
}

// openDriver may return a non-nil closer along with an error once a bus is
// in use.
func (c *config) openDriver() (display, func(), error) {
	nop := func() {}
	switch c.driver {
	case "tm1637":
		clk, err := c.pin(c.clk)
		if err != nil {
			return nil, nil, err
		}
		dio, err := c.pin(c.dio)
		if err != nil {
			return nil, nil, err
		}
		bus := tmi.NewTwoWire(clk, dio, tmi.DefaultTM1637Delay)
		if err := bus.Begin(); err != nil {
			return nil, func() { _ = bus.End() }, err
		}
		d, err := tm1637.New(bus, c.digits, &tm1637.Opts{Remap: c.remap()})
		return d, func() { _ = bus.End() }, err
	case "tm1638", "tm1638anode":
		pins, err := c.pins(strings.Join([]string{c.stb, c.clk, c.dio}, ","))
		if err != nil {
			return nil, nil, err
		}
		if len(pins) != 3 {
			return nil, nil, errors.New("-stb, -clk and -dio are required")
		}
		bus := tmi.NewThreeWire(pins[0], pins[1], pins[2], tmi.DefaultTM1638Delay)
		closer := func() { _ = bus.End() }
		if err := bus.Begin(); err != nil {
			return nil, closer, err
		}
		if c.driver == "tm1638anode" {
			d, err := tm1638.NewAnode(bus, c.digits)
			return d, closer, err
		}
		d, err := tm1638.New(bus, c.digits, &tm1638.Opts{Remap: c.remap()})
		return d, closer, err
	case "max7219":
		conn, closer, err := c.spiConn(10 * physic.MegaHertz)
		if err != nil {
			return nil, nil, err
		}
		units := (c.digits + max7219.MaxDigits - 1) / max7219.MaxDigits
		perUnit := min(c.digits, max7219.MaxDigits)
		var remap []int
		if c.reverse {
			remap = ledmodule.RemapReversed(perUnit)
		}
		d, err := max7219.New(conn, units, perUnit, &max7219.Opts{Remap: remap})
		return d, closer, err
	case "ht16k33":
		bus, closer, err := c.i2cBus()
		if err != nil {
			return nil, nil, err
		}
		d, err := ht16k33.New(bus, &ht16k33.Opts{Addr: uint16(c.addr), EnableColon: true})
		return d, closer, err
	case "direct":
		segs, err := c.pins(c.segments)
		if err != nil {
			return nil, nil, err
		}
		groups, err := c.pins(c.groups)
		if err != nil {
			return nil, nil, err
		}
		m, err := ledmatrix.NewDirect(segs, groups, c.matrixOpts())
		if err != nil {
			return nil, nil, err
		}
		d, err := c.scanner(m)
		return d, nop, err
	case "hc595":
		conn, closer, err := c.spiConn(physic.MegaHertz)
		if err != nil {
			return nil, nil, err
		}
		groups, err := c.pins(c.groups)
		if err != nil {
			return nil, closer, err
		}
		m, err := ledmatrix.NewSingleHc595(conn, groups, c.matrixOpts())
		if err != nil {
			return nil, closer, err
		}
		d, err := c.scanner(m)
		return d, closer, err
	case "dualhc595":
		conn, closer, err := c.spiConn(physic.MegaHertz)
		if err != nil {
			return nil, nil, err
		}
		opts := &ledmatrix.DualHc595Opts{Opts: *c.matrixOpts()}
		if c.digits == 8 {
			if opts.Remap, err = ledmodule.NewRemap(ledmodule.RemapHc595EightDigit); err != nil {
				return nil, closer, err
			}
		}
		m, err := ledmatrix.NewDualHc595(conn, opts)
		if err != nil {
			return nil, closer, err
		}
		d, err := c.scanner(m)
		return d, closer, err
	case "term":
		d, err := segterm.New(c.digits, nil)
		if err != nil {
			return nil, nil, err
		}
		return &terminal{Dev: d}, nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", c.driver)
	}
}
