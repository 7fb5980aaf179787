// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tmi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"

	"github.com/GermanBionicSystems/ledsegment/internal/pintest"
)

func bitsOf(b byte) func() gpio.Level {
	i := 0
	return func() gpio.Level {
		l := gpio.Level(b&(1<<i) != 0)
		i++
		return l
	}
}

func TestTwoWireSend(t *testing.T) {
	log := &pintest.Log{}
	clk := pintest.New("CLK", 1, log)
	dio := pintest.New("DIO", 2, log)
	tw := NewTwoWire(clk, dio, 0)
	if err := tw.Begin(); err != nil {
		t.Fatal(err)
	}

	ops := []func() error{
		tw.StartCondition,
		func() error { return tw.SendByte(0x40) },
		tw.StopCondition,
		tw.StartCondition,
		func() error { return tw.SendByte(0xc0) },
		func() error { return tw.SendByte(0x3f) },
		func() error { return tw.SendByte(0x06) },
		tw.StopCondition,
	}
	for _, op := range ops {
		if err := op(); err != nil {
			t.Fatal(err)
		}
	}

	expected := [][]byte{{0x40}, {0xc0, 0x3f, 0x06}}
	if diff := cmp.Diff(expected, log.WireFrames("CLK", "DIO", true)); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if !clk.Released() || !dio.Released() {
		t.Error("bus must idle with both lines released")
	}
}

func TestTwoWireNeverDrivesHigh(t *testing.T) {
	log := &pintest.Log{}
	tw := NewTwoWire(pintest.New("CLK", 1, log), pintest.New("DIO", 2, log), 0)
	_ = tw.StartCondition()
	_ = tw.SendByte(0xff)
	_ = tw.StopCondition()
	for _, e := range log.Events() {
		if !e.Released && e.Level == gpio.High {
			t.Fatalf("%s actively driven high", e.Pin)
		}
	}
}

func TestTwoWireNack(t *testing.T) {
	log := &pintest.Log{}
	dio := pintest.New("DIO", 2, log)
	dio.ReadLevel = gpio.High
	tw := NewTwoWire(pintest.New("CLK", 1, log), dio, 0)
	_ = tw.StartCondition()
	if err := tw.SendByte(0x88); !errors.Is(err, ErrNack) {
		t.Errorf("expected ErrNack, received %v", err)
	}
	// The byte is still fully clocked out.
	_ = tw.StopCondition()
	if diff := cmp.Diff([][]byte{{0x88}}, log.WireFrames("CLK", "DIO", true)); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestTwoWireReadByte(t *testing.T) {
	log := &pintest.Log{}
	dio := pintest.New("DIO", 2, log)
	tw := NewTwoWire(pintest.New("CLK", 1, log), dio, 0)
	_ = tw.StartCondition()
	if err := tw.SendByte(0x42); err != nil {
		t.Fatal(err)
	}
	dio.Input = bitsOf(0xa5)
	b, err := tw.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 0xa5 {
		t.Errorf("ReadByte expected 0xa5, received 0x%x", b)
	}
	_ = tw.StopCondition()
}

func TestThreeWire(t *testing.T) {
	log := &pintest.Log{}
	stb := pintest.New("STB", 1, log)
	dio := pintest.New("DIO", 3, log)
	tw := NewThreeWire(stb, pintest.New("CLK", 2, log), dio, 0)
	if err := tw.Begin(); err != nil {
		t.Fatal(err)
	}
	_ = tw.BeginTransaction()
	_ = tw.Write(0x40)
	_ = tw.EndTransaction()
	_ = tw.BeginTransaction()
	_ = tw.Write(0xc0)
	_ = tw.Write(0x5b)
	_ = tw.Write(0x00)
	_ = tw.EndTransaction()

	expected := [][]byte{{0x40}, {0xc0, 0x5b, 0x00}}
	if diff := cmp.Diff(expected, log.StrobeFrames("STB", "CLK", "DIO", true)); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	_ = tw.BeginTransaction()
	_ = tw.Write(0x42)
	dio.Input = bitsOf(0x81)
	b, err := tw.Read()
	if err != nil {
		t.Fatal(err)
	}
	if b != 0x81 {
		t.Errorf("Read expected 0x81, received 0x%x", b)
	}
	_ = tw.EndTransaction()
	if stb.Level() != gpio.High {
		t.Error("STB must be high after a transaction")
	}

	if err := tw.End(); err != nil {
		t.Fatal(err)
	}
	if !dio.Released() || !stb.Released() {
		t.Error("End must release the lines")
	}
}
