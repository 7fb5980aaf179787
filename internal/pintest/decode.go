// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pintest

import (
	"periph.io/x/conn/v3/gpio"
)

type lines map[string]gpio.Level

func (l lines) apply(e Event) (prev, cur gpio.Level) {
	prev, ok := l[e.Pin]
	if !ok {
		prev = gpio.High
	}
	cur = e.Level
	if e.Released {
		cur = gpio.High
	}
	l[e.Pin] = cur
	return prev, cur
}

func (l lines) level(name string) gpio.Level {
	v, ok := l[name]
	return gpio.Level(!ok || v == gpio.High)
}

func assemble(bits []bool, width int, lsbFirst bool) []byte {
	var out []byte
	for i := 0; i+width <= len(bits); i += width {
		var b byte
		for j := range 8 {
			if !bits[i+j] {
				continue
			}
			if lsbFirst {
				b |= 1 << j
			} else {
				b |= 0x80 >> j
			}
		}
		out = append(out, b)
	}
	return out
}

// WireFrames decodes a two-wire (I2C like) exchange. A frame starts when data
// falls while clk is high and ends when data rises while clk is high. Bits
// are sampled on the rising edge of clk; each byte is followed by one
// acknowledgement clock which is dropped. A repeated start closes the
// current frame and opens a new one.
func (l *Log) WireFrames(clk, data string, lsbFirst bool) [][]byte {
	state := lines{}
	var frames [][]byte
	var bits []bool
	inFrame := false
	for _, e := range l.Events() {
		prev, cur := state.apply(e)
		if prev == cur {
			continue
		}
		switch e.Pin {
		case data:
			if state.level(clk) != gpio.High {
				continue
			}
			if cur == gpio.Low {
				if inFrame {
					frames = append(frames, assemble(bits, 9, lsbFirst))
				}
				inFrame = true
				bits = nil
			} else if inFrame {
				frames = append(frames, assemble(bits, 9, lsbFirst))
				inFrame = false
			}
		case clk:
			if inFrame && cur == gpio.High {
				bits = append(bits, state.level(data) == gpio.High)
			}
		}
	}
	return frames
}

// StrobeFrames decodes a strobed serial exchange. A frame lasts while strobe
// is low; bits are sampled on the rising edge of clk, 8 bits per byte.
func (l *Log) StrobeFrames(strobe, clk, data string, lsbFirst bool) [][]byte {
	state := lines{}
	var frames [][]byte
	var bits []bool
	for _, e := range l.Events() {
		prev, cur := state.apply(e)
		if prev == cur {
			continue
		}
		switch e.Pin {
		case strobe:
			if cur == gpio.Low {
				bits = nil
			} else {
				frames = append(frames, assemble(bits, 8, lsbFirst))
			}
		case clk:
			if cur == gpio.High && state.level(strobe) == gpio.Low {
				bits = append(bits, state.level(data) == gpio.High)
			}
		}
	}
	return frames
}
