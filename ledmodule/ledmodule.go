// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledmodule holds the in-memory state of a multi-digit seven-segment
// LED module: one segment pattern per digit, brightness values, and the dirty
// bits used by flush based drivers to skip unchanged data.
//
// Digit 0 is the left most digit. Bit 0 of a pattern is segment A, bit 6 is
// segment G, and bit 7 is the decimal point (or colon on clock modules).
// Drivers whose hardware does not follow this convention remap digits and
// segments when they transmit.
//
// Every field is stored in its own atomic word. Application code may write
// patterns from one goroutine while a scanner or flusher reads them from
// another without any additional locking.
package ledmodule

import (
	"fmt"
	"sync/atomic"
)

const (
	// MaxDigits is the largest number of digits a Module can hold. One extra
	// dirty bit is reserved for the brightness.
	MaxDigits = 63

	// DecimalPoint is the pattern bit reserved for the decimal point.
	DecimalPoint byte = 0x80
)

// Module is the display content model shared by every driver.
type Module struct {
	patterns      []atomic.Uint32
	brightnesses  []atomic.Uint32
	brightness    atomic.Uint32
	maxBrightness byte
	dirty         atomic.Uint64
	numDigits     int
}

// New returns a Module with numDigits blank digits. Brightness values are
// clamped to [0, maxBrightness].
//
// All dirty bits start set so that the first flush always transmits.
func New(numDigits int, maxBrightness byte) (*Module, error) {
	if numDigits <= 0 || numDigits > MaxDigits {
		return nil, fmt.Errorf("ledmodule: invalid number of digits %d", numDigits)
	}
	m := &Module{
		patterns:      make([]atomic.Uint32, numDigits),
		brightnesses:  make([]atomic.Uint32, numDigits),
		maxBrightness: maxBrightness,
		numDigits:     numDigits,
	}
	m.MarkAllDirty()
	return m, nil
}

// NumDigits returns the number of digits.
func (m *Module) NumDigits() int {
	return m.numDigits
}

// MaxBrightness returns the largest accepted brightness value.
func (m *Module) MaxBrightness() byte {
	return m.maxBrightness
}

// SetPatternAt sets the segment pattern of the digit at pos. An out of range
// pos is ignored.
func (m *Module) SetPatternAt(pos int, pattern byte) {
	if pos < 0 || pos >= m.numDigits {
		return
	}
	m.patterns[pos].Store(uint32(pattern))
	m.setBit(pos)
}

// PatternAt returns the segment pattern of the digit at pos, or 0 when pos
// is out of range.
func (m *Module) PatternAt(pos int) byte {
	if pos < 0 || pos >= m.numDigits {
		return 0
	}
	return byte(m.patterns[pos].Load())
}

// SetPatterns writes patterns starting at digit 0. Extra patterns are
// ignored.
func (m *Module) SetPatterns(patterns ...byte) {
	for i, p := range patterns {
		m.SetPatternAt(i, p)
	}
}

// SetDecimalPointAt turns the decimal point of the digit at pos on or off,
// leaving the other segments untouched.
func (m *Module) SetDecimalPointAt(pos int, on bool) {
	if pos < 0 || pos >= m.numDigits {
		return
	}
	p := byte(m.patterns[pos].Load())
	if on {
		p |= DecimalPoint
	} else {
		p &^= DecimalPoint
	}
	m.patterns[pos].Store(uint32(p))
	m.setBit(pos)
}

// DecimalPointAt reports whether the decimal point of the digit at pos is on.
func (m *Module) DecimalPointAt(pos int) bool {
	return m.PatternAt(pos)&DecimalPoint != 0
}

// Clear blanks every digit.
func (m *Module) Clear() {
	for i := range m.numDigits {
		m.SetPatternAt(i, 0)
	}
}

// SetBrightness sets the global brightness, and the brightness of every
// digit, to b clamped to MaxBrightness.
func (m *Module) SetBrightness(b byte) {
	b = m.clamp(b)
	m.brightness.Store(uint32(b))
	for i := range m.brightnesses {
		m.brightnesses[i].Store(uint32(b))
	}
	m.setBit(m.numDigits)
}

// Brightness returns the global brightness.
func (m *Module) Brightness() byte {
	return byte(m.brightness.Load())
}

// SetBrightnessAt sets the brightness of a single digit. Only drivers that
// modulate each digit themselves honor it.
func (m *Module) SetBrightnessAt(pos int, b byte) {
	if pos < 0 || pos >= m.numDigits {
		return
	}
	m.brightnesses[pos].Store(uint32(m.clamp(b)))
	m.setBit(pos)
}

// BrightnessAt returns the brightness of the digit at pos, or 0 when pos is
// out of range.
func (m *Module) BrightnessAt(pos int) byte {
	if pos < 0 || pos >= m.numDigits {
		return 0
	}
	return byte(m.brightnesses[pos].Load())
}

func (m *Module) clamp(b byte) byte {
	if b > m.maxBrightness {
		return m.maxBrightness
	}
	return b
}

// Dirty bits.

// BrightnessBit returns the index of the dirty bit used for brightness. Digit
// i uses bit i.
func (m *Module) BrightnessBit() int {
	return m.numDigits
}

func (m *Module) allBits() uint64 {
	return uint64(1)<<(m.numDigits+1) - 1
}

func (m *Module) digitBits() uint64 {
	return uint64(1)<<m.numDigits - 1
}

func (m *Module) setBit(bit int) {
	m.dirty.Or(uint64(1) << bit)
}

// IsDirtyBit reports whether the given dirty bit is set. Out of range bits
// are never dirty.
func (m *Module) IsDirtyBit(bit int) bool {
	if bit < 0 || bit > m.numDigits {
		return false
	}
	return m.dirty.Load()&(uint64(1)<<bit) != 0
}

// IsDigitDirty reports whether the digit at pos changed since it was last
// flushed.
func (m *Module) IsDigitDirty(pos int) bool {
	if pos < 0 || pos >= m.numDigits {
		return false
	}
	return m.IsDirtyBit(pos)
}

// IsAnyDigitDirty reports whether at least one digit is dirty.
func (m *Module) IsAnyDigitDirty() bool {
	return m.dirty.Load()&m.digitBits() != 0
}

// IsBrightnessDirty reports whether the brightness changed since it was last
// flushed.
func (m *Module) IsBrightnessDirty() bool {
	return m.IsDirtyBit(m.numDigits)
}

// IsFlushRequired reports whether any digit or the brightness is dirty.
func (m *Module) IsFlushRequired() bool {
	return m.dirty.Load() != 0
}

// ClearDigitsDirty clears the dirty bit of every digit.
func (m *Module) ClearDigitsDirty() {
	m.dirty.And(^m.digitBits())
}

// ClearBrightnessDirty clears the brightness dirty bit.
func (m *Module) ClearBrightnessDirty() {
	m.dirty.And(^(uint64(1) << m.numDigits))
}

// TakeDirtyBit clears the given bit and reports whether it was set.
//
// Flushers take the bit before reading the value it guards so that a write
// racing with the transmission leaves the bit set for the next flush.
func (m *Module) TakeDirtyBit(bit int) bool {
	if bit < 0 || bit > m.numDigits {
		return false
	}
	mask := uint64(1) << bit
	return m.dirty.And(^mask)&mask != 0
}

// TakeDirty clears every dirty bit and returns the previous set.
func (m *Module) TakeDirty() uint64 {
	return m.dirty.Swap(0)
}

// MarkDirty sets the given dirty bits again, typically after a failed
// transmission.
func (m *Module) MarkDirty(bits uint64) {
	m.dirty.Or(bits & m.allBits())
}

// MarkAllDirty sets every digit and the brightness dirty.
func (m *Module) MarkAllDirty() {
	m.dirty.Or(m.allBits())
}
