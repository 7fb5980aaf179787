// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tm1637

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GermanBionicSystems/ledsegment/internal/pintest"
	"github.com/GermanBionicSystems/ledsegment/ledmodule"
	"github.com/GermanBionicSystems/ledsegment/tmi"
)

// fakeBus records one frame per start/stop pair. If failAt is positive, the
// failAt'th SendByte reports a NACK.
type fakeBus struct {
	frames [][]byte
	sent   int
	failAt int
	keys   byte
}

func (f *fakeBus) StartCondition() error {
	f.frames = append(f.frames, []byte{})
	return nil
}

func (f *fakeBus) StopCondition() error {
	return nil
}

func (f *fakeBus) SendByte(b byte) error {
	i := len(f.frames) - 1
	f.frames[i] = append(f.frames[i], b)
	f.sent++
	if f.sent == f.failAt {
		return tmi.ErrNack
	}
	return nil
}

func (f *fakeBus) ReadByte() (byte, error) {
	return f.keys, nil
}

func newDev(t *testing.T, bus Bus, digits int, opts *Opts) *Dev {
	t.Helper()
	d, err := New(bus, digits, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Begin(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNew(t *testing.T) {
	if _, err := New(&fakeBus{}, 7, nil); err == nil {
		t.Error("expected error with 7 digits")
	}
	if _, err := New(&fakeBus{}, 0, nil); err == nil {
		t.Error("expected error with 0 digits")
	}
	if _, err := New(&fakeBus{}, 4, &Opts{Remap: []int{0, 1, 2}}); err == nil {
		t.Error("expected error with a short remap table")
	}
	if _, err := New(&fakeBus{}, 4, &Opts{Remap: []int{0, 1, 1, 2}}); !errors.Is(err, ledmodule.ErrInvalidRemap) {
		t.Errorf("expected ErrInvalidRemap, received %v", err)
	}
}

func TestFlushIgnoresDirtyBits(t *testing.T) {
	bus := &fakeBus{}
	d := newDev(t, bus, 4, nil)
	if !d.IsFlushRequired() {
		t.Fatal("a new Dev must require a flush")
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if d.IsFlushRequired() {
		t.Fatal("Flush must clear the dirty bits")
	}
	bus.frames = nil
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	expected := [][]byte{{0x8f}, {0x40}, {0xc0, 0, 0, 0, 0}}
	if diff := cmp.Diff(expected, bus.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFlushIncremental(t *testing.T) {
	bus := &fakeBus{}
	d := newDev(t, bus, 4, nil)
	_ = d.Flush()
	bus.frames = nil

	// Nothing dirty, nothing sent.
	for range 10 {
		if err := d.FlushIncremental(); err != nil {
			t.Fatal(err)
		}
	}
	if len(bus.frames) != 0 {
		t.Fatalf("unexpected frames %v", bus.frames)
	}

	d.SetPatternAt(2, 0x5b)
	d.SetBrightness(3)
	for range 5 {
		if err := d.FlushIncremental(); err != nil {
			t.Fatal(err)
		}
	}
	// 10 calls already moved the stage to 0.
	expected := [][]byte{{0x44}, {0xc2, 0x5b}, {0x8b}}
	if diff := cmp.Diff(expected, bus.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if d.IsFlushRequired() {
		t.Error("a full cycle must clear the dirty bits")
	}
}

func TestRemap(t *testing.T) {
	bus := &fakeBus{}
	d := newDev(t, bus, 6, &Opts{Remap: ledmodule.RemapTM1637SixDigit})
	d.SetPatterns(1, 2, 3, 4, 5, 6)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	expected := []byte{0xc0, 3, 2, 1, 6, 5, 4}
	if diff := cmp.Diff(expected, bus.frames[2]); diff != "" {
		t.Errorf("digits mismatch (-want +got):\n%s", diff)
	}

	bus.frames = nil
	d.SetPatternAt(0, 0x3f)
	for range 7 {
		_ = d.FlushIncremental()
	}
	expected2 := [][]byte{{0x44}, {0xc2, 0x3f}}
	if diff := cmp.Diff(expected2, bus.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestNackKeepsDirty(t *testing.T) {
	bus := &fakeBus{failAt: 4}
	d := newDev(t, bus, 4, nil)
	d.SetPatterns(0x06, 0x5b, 0x4f, 0x66)
	if err := d.Flush(); !errors.Is(err, tmi.ErrNack) {
		t.Fatalf("expected ErrNack, received %v", err)
	}
	for i := range 4 {
		if !d.IsDigitDirty(i) {
			t.Errorf("digit %d must stay dirty", i)
		}
	}
	if !d.IsBrightnessDirty() {
		t.Error("brightness must stay dirty")
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if d.IsFlushRequired() {
		t.Error("the next successful Flush must clear the dirty bits")
	}

	bus.sent, bus.failAt = 0, 2
	d.SetPatternAt(1, 0x7f)
	for range 5 {
		_ = d.FlushIncremental()
	}
	if !d.IsDigitDirty(1) {
		t.Error("digit 1 must stay dirty after a NACK")
	}
}

func TestDisplayOnOff(t *testing.T) {
	bus := &fakeBus{}
	d := newDev(t, bus, 4, nil)
	_ = d.Flush()
	d.SetBrightness(2)
	d.SetDisplayOn(false)
	if d.DisplayOn() {
		t.Error("expected display off")
	}
	bus.frames = nil
	for range 5 {
		_ = d.FlushIncremental()
	}
	if diff := cmp.Diff([][]byte{{0x82}}, bus.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	bus.frames = nil
	if err := d.End(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]byte{{0x82}}, bus.frames); diff != "" {
		t.Errorf("End mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKeys(t *testing.T) {
	bus := &fakeBus{keys: 0xf7}
	d := newDev(t, bus, 4, nil)
	k, err := d.ReadKeys()
	if err != nil {
		t.Fatal(err)
	}
	if k != 0xf7 {
		t.Errorf("expected 0xf7, received 0x%x", k)
	}
	if diff := cmp.Diff([][]byte{{0x42}}, bus.frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestOverTwoWire(t *testing.T) {
	log := &pintest.Log{}
	tw := tmi.NewTwoWire(pintest.New("CLK", 1, log), pintest.New("DIO", 2, log), 0)
	if err := tw.Begin(); err != nil {
		t.Fatal(err)
	}
	d := newDev(t, tw, 4, nil)
	d.SetPatterns(0x3f, 0x06, 0x5b, 0x4f)
	d.SetBrightness(4)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	expected := [][]byte{{0x8c}, {0x40}, {0xc0, 0x3f, 0x06, 0x5b, 0x4f}}
	if diff := cmp.Diff(expected, log.WireFrames("CLK", "DIO", true)); diff != "" {
		t.Errorf("wire mismatch (-want +got):\n%s", diff)
	}
}
