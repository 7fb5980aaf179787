// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package segimage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

func at(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestDraw(t *testing.T) {
	m, err := ledmodule.New(2, 15)
	if err != nil {
		t.Fatal(err)
	}
	m.SetBrightness(15)
	m.SetPatterns(0x07, 0x40)
	m.SetBrightnessAt(1, 5)
	img := Draw(m, nil)

	// With 80 pixel digits, segments are 8 pixels thick and digits 60 pixels
	// apart after an 8 pixel margin.
	if b := img.Bounds(); b.Dx() != 136 || b.Dy() != 96 {
		t.Fatalf("unexpected bounds %v", b)
	}
	data := []struct {
		name     string
		x, y     int
		expected color.NRGBA
	}{
		{"background", 2, 2, DefaultOpts.Background},
		{"digit 0 A", 28, 12, DefaultOpts.On},
		{"digit 0 G", 28, 48, DefaultOpts.Off},
		{"digit 1 A", 88, 12, DefaultOpts.Off},
		{"digit 1 G", 88, 48, color.NRGBA{R: 85, A: 255}},
	}
	for _, line := range data {
		if c := at(img, line.x, line.y); c != line.expected {
			t.Errorf("%s: expected %v, received %v", line.name, line.expected, c)
		}
	}
}

func TestWritePNG(t *testing.T) {
	m, _ := ledmodule.New(4, 7)
	m.SetPatterns(0xff, 0xff, 0xff, 0xff)
	buf := bytes.Buffer{}
	if err := WritePNG(&buf, m, &Opts{DigitHeight: 40, On: color.NRGBA{G: 255, A: 255}}); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 48 {
		t.Errorf("unexpected bounds %v", b)
	}
}

func TestScale(t *testing.T) {
	c := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	if got := scale(c, 0, 0); got != c {
		t.Errorf("unexpected %v", got)
	}
	if got := scale(c, 1, 2); got != (color.NRGBA{R: 100, G: 50, B: 25, A: 255}) {
		t.Errorf("unexpected %v", got)
	}
}

func TestLabel(t *testing.T) {
	m, _ := ledmodule.New(1, 7)
	img := Draw(m, &Opts{Label: "TM1637"})
	if b := img.Bounds(); b.Dx() != 76 || b.Dy() != 117 {
		t.Errorf("unexpected bounds %v", b)
	}
}
