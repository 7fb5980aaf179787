// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package segterm

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/maruel/ansi256"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

var red = color.NRGBA{R: 255, A: 255}

func TestFlush(t *testing.T) {
	buf := bytes.Buffer{}
	d, err := New(2, &Opts{W: &buf})
	if err != nil {
		t.Fatal(err)
	}
	d.SetPatterns(0x7f|ledmodule.DecimalPoint, 0x06)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	// "8." lights 11 pixels, "1" lights 2.
	if n := strings.Count(out, ansi256.Default.Block(red)); n != 13 {
		t.Errorf("expected 13 lit pixels, found %d", n)
	}
	if n := strings.Count(out, "\n"); n != cellHeight {
		t.Errorf("expected %d rows, found %d", cellHeight, n)
	}
	if d.IsFlushRequired() {
		t.Error("Flush must clear the dirty bits")
	}

	// The second drawing overwrites the first one.
	buf.Reset()
	d.SetDisplayOn(false)
	if err := d.FlushIncremental(); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	if !strings.HasPrefix(out, "\033[5A") {
		t.Errorf("expected cursor up, received %q", out)
	}
	if strings.Contains(out, ansi256.Default.Block(red)) {
		t.Error("display is off")
	}

	buf.Reset()
	if err := d.FlushIncremental(); err != nil || buf.Len() != 0 {
		t.Errorf("nothing to draw, received %q, %v", buf.String(), err)
	}
}

func TestDigitColor(t *testing.T) {
	d, _ := New(1, &Opts{W: &bytes.Buffer{}, On: color.NRGBA{R: 150, G: 30, A: 255}})
	d.SetBrightness(5)
	if c := d.digitColor(0); c != (color.NRGBA{R: 50, G: 10, A: 255}) {
		t.Errorf("unexpected color %v", c)
	}
}

func TestHalt(t *testing.T) {
	buf := bytes.Buffer{}
	d, _ := New(4, &Opts{W: &buf})
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\n\033[0m" || d.String() != "SegTerm" {
		t.Errorf("unexpected %q", buf.String())
	}
	if _, err := New(0, nil); err == nil {
		t.Error("expected error with 0 digits")
	}
}
