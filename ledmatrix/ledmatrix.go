// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledmatrix drives a matrix of LEDs organized as groups (usually the
// digits of a display) and elements (usually the segments of a digit).
//
// Only one group is lit at a time. A Matrix is meant to be refreshed
// continuously by scanning.Scanner so that every group appears to be lit.
//
// Three wirings are supported:
//
//   - Direct: every group and element line is a gpio pin.
//   - SingleHc595: elements go through one 74HC595 shift register, groups are
//     gpio pins.
//   - DualHc595: groups and elements go through two chained 74HC595 shift
//     registers, written in one 16 bit transfer.
//
// Each line can be active high or active low, for example when a PNP
// transistor drives a common anode digit.
package ledmatrix

import (
	"errors"
	"fmt"
)

// Matrix is a set of LEDs organized in groups of up to 8 elements.
//
// Group indexes must be in range; they are not checked.
type Matrix interface {
	// Begin configures the lines and turns everything off.
	Begin() error
	// End releases the lines.
	End() error
	// Draw lights elements on group. The previously lit group is turned off
	// before the new elements are written, so two groups are never lit at the
	// same time.
	Draw(group int, elements byte) error
	// EnableGroup turns group on with the elements last written.
	EnableGroup(group int) error
	// DisableGroup turns group off.
	DisableGroup(group int) error
	// Clear turns off every group and every element.
	Clear() error
}

// Polarity is the level that turns a line on.
type Polarity uint8

const (
	// ActiveHigh lines turn on when driven high.
	ActiveHigh Polarity = iota
	// ActiveLow lines turn on when driven low.
	ActiveLow
)

func (p Polarity) String() string {
	switch p {
	case ActiveHigh:
		return "ActiveHigh"
	case ActiveLow:
		return "ActiveLow"
	default:
		return fmt.Sprintf("Polarity(%d)", uint8(p))
	}
}

// xorMask returns the mask that converts a logical on bit into the wire level.
func (p Polarity) xorMask() byte {
	if p == ActiveLow {
		return 0xff
	}
	return 0x00
}

// Opts is the polarity of the lines, common to every wiring.
type Opts struct {
	Elements Polarity
	Groups   Polarity
}

// DefaultOpts is common cathode digits with segments and digits driven
// directly by the pins.
var DefaultOpts = Opts{Elements: ActiveHigh, Groups: ActiveLow}

var (
	errNoGroups     = errors.New("ledmatrix: at least one group is required")
	errTooManyLines = errors.New("ledmatrix: at most 8 lines per axis are supported")
	errNoElements   = errors.New("ledmatrix: at least one element is required")
)

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ledmatrix: %w", err)
}

func masks(opts *Opts) (element, group byte) {
	if opts == nil {
		opts = &DefaultOpts
	}
	return opts.Elements.xorMask(), opts.Groups.xorMask()
}
