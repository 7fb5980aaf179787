// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/GermanBionicSystems/ledsegment/internal/pintest"
	"github.com/GermanBionicSystems/ledsegment/segterm"
)

func newTerminal(t *testing.T, digits int) *terminal {
	t.Helper()
	d, err := segterm.New(digits, &segterm.Opts{W: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}
	return &terminal{Dev: d}
}

func patterns(d display) []byte {
	out := make([]byte, d.NumDigits())
	for i := range out {
		out[i] = d.PatternAt(i)
	}
	return out
}

func TestShowNumber(t *testing.T) {
	d := newTerminal(t, 4)
	showNumber(d, 42, 10)
	if diff := cmp.Diff([]byte{0, 0, 0x66, 0x5b}, patterns(d)); diff != "" {
		t.Errorf("patterns mismatch (-want +got):\n%s", diff)
	}
	showNumber(d, 0, 10)
	if diff := cmp.Diff([]byte{0, 0, 0, 0x3f}, patterns(d)); diff != "" {
		t.Errorf("patterns mismatch (-want +got):\n%s", diff)
	}
	showNumber(d, 0xbeef, 16)
	if diff := cmp.Diff([]byte{0x7c, 0x79, 0x79, 0x71}, patterns(d)); diff != "" {
		t.Errorf("patterns mismatch (-want +got):\n%s", diff)
	}
}

func TestShowClock(t *testing.T) {
	d := newTerminal(t, 4)
	showClock(d, time.Date(2025, 1, 1, 9, 41, 2, 0, time.UTC))
	if diff := cmp.Diff([]byte{0x3f, 0x6f | 0x80, 0x66, 0x06}, patterns(d)); diff != "" {
		t.Errorf("patterns mismatch (-want +got):\n%s", diff)
	}
	showClock(d, time.Date(2025, 1, 1, 9, 41, 3, 0, time.UTC))
	if d.PatternAt(1) != 0x6f {
		t.Errorf("separator must blink, received 0x%02x", d.PatternAt(1))
	}
}

func TestRun(t *testing.T) {
	d := newTerminal(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, d, time.Hour, false, 10); err != nil {
		t.Fatal(err)
	}
	if d.PatternAt(1) != 0x3f || d.IsFlushRequired() {
		t.Error("the first value must be flushed")
	}
}

func TestSplitList(t *testing.T) {
	if diff := cmp.Diff([]string{"GPIO2", "GPIO3"}, splitList(" GPIO2, ,GPIO3,")); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	c := config{driver: "nope"}
	if _, _, err := c.open(); err == nil {
		t.Error("expected unknown driver")
	}
	c = config{rpio: true}
	if _, err := c.pin("GPIO2"); err == nil {
		t.Error("expected invalid BCM number")
	}
	if p, err := c.pin("17"); err != nil || p.Number() != 17 {
		t.Errorf("unexpected %v, %v", p, err)
	}
}

func TestOpenReleasesPinsOnError(t *testing.T) {
	log := &pintest.Log{}
	var pins []*pintest.Pin
	for i, name := range []string{"SEGDEMO_STB", "SEGDEMO_CLK", "SEGDEMO_DIO"} {
		p := pintest.New(name, 100+i, log)
		if err := gpioreg.Register(p); err != nil {
			t.Fatal(err)
		}
		defer func() { _ = gpioreg.Unregister(name) }()
		pins = append(pins, p)
	}
	for _, driver := range []string{"tm1638", "tm1638anode"} {
		c := config{driver: driver, stb: "SEGDEMO_STB", clk: "SEGDEMO_CLK", dio: "SEGDEMO_DIO"}
		if _, _, err := c.open(); err == nil {
			t.Fatalf("%s: expected error with 0 digits", driver)
		}
		for _, p := range pins {
			if !p.Released() {
				t.Errorf("%s: %s must be released", driver, p)
			}
		}
	}
}

// closedPort tracks Close on a recorded port.
type closedPort struct {
	*spitest.Record
	closed bool
}

func (c *closedPort) Close() error {
	c.closed = true
	return nil
}

func TestOpenClosesPortOnError(t *testing.T) {
	port := &closedPort{Record: &spitest.Record{}}
	opener := func() (spi.PortCloser, error) { return port, nil }
	if err := spireg.Register("SEGDEMO_SPI", nil, -1, opener); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = spireg.Unregister("SEGDEMO_SPI") }()
	c := config{driver: "max7219", spi: "SEGDEMO_SPI"}
	if _, _, err := c.open(); err == nil {
		t.Fatal("expected error with 0 digits")
	}
	if !port.closed {
		t.Error("the SPI port must be closed")
	}
}
