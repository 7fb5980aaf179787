// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softwire

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/ledsegment/internal/pintest"
)

func newBus(t *testing.T) (*Bus, *pintest.Pin, *pintest.Log) {
	t.Helper()
	log := &pintest.Log{}
	sda := pintest.New("SDA", 2, log)
	b, err := New(pintest.New("SCL", 3, log), sda)
	if err != nil {
		t.Fatal(err)
	}
	b.delay = 0
	return b, sda, log
}

func TestWrite(t *testing.T) {
	b, _, log := newBus(t)
	d := i2c.Dev{Bus: b, Addr: 0x70}
	if err := d.Tx([]byte{0x00, 0x3f, 0x00}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Write([]byte{0xef}); err != nil {
		t.Fatal(err)
	}
	expected := [][]byte{{0xe0, 0x00, 0x3f, 0x00}, {0xe0, 0xef}}
	if diff := cmp.Diff(expected, log.WireFrames("SCL", "SDA", false)); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestNeverDrivesHigh(t *testing.T) {
	b, _, log := newBus(t)
	_ = b.Tx(0x7f, []byte{0xff, 0xff}, nil)
	for _, e := range log.Events() {
		if !e.Released && e.Level == gpio.High {
			t.Fatalf("%s actively driven high", e.Pin)
		}
	}
}

func TestRead(t *testing.T) {
	b, sda, log := newBus(t)
	// The address acknowledge, then 0xa5 and 0x3c MSB first.
	var levels []gpio.Level
	levels = append(levels, gpio.Low)
	for _, c := range []byte{0xa5, 0x3c} {
		for i := range 8 {
			levels = append(levels, gpio.Level(c&(0x80>>i) != 0))
		}
	}
	sda.Input = func() gpio.Level {
		l := levels[0]
		levels = levels[1:]
		return l
	}
	r := make([]byte, 2)
	if err := b.Tx(0x70, nil, r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xa5, 0x3c}, r); diff != "" {
		t.Errorf("read mismatch (-want +got):\n%s", diff)
	}
	frames := log.WireFrames("SCL", "SDA", false)
	if len(frames) != 1 || frames[0][0] != 0xe1 {
		t.Errorf("expected a read of address 0x70, received %v", frames)
	}
}

func TestNack(t *testing.T) {
	b, sda, _ := newBus(t)
	sda.ReadLevel = gpio.High
	if err := b.Tx(0x70, []byte{0x21}, nil); !errors.Is(err, ErrNack) {
		t.Errorf("expected ErrNack, received %v", err)
	}
	if !sda.Released() {
		t.Error("stop condition must release SDA")
	}
}

func TestErrors(t *testing.T) {
	b, _, _ := newBus(t)
	if err := b.Tx(0x80, nil, nil); err == nil {
		t.Error("expected invalid address")
	}
	if err := b.SetSpeed(0); err == nil {
		t.Error("expected invalid speed")
	}
	if err := b.SetSpeed(400 * physic.KiloHertz); err != nil {
		t.Error(err)
	}
	if b.String() != "softwire{SCL, SDA}" {
		t.Errorf("unexpected %s", b)
	}
}
