// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledmodule

import (
	"errors"
)

// ErrInvalidRemap is returned when a remap table is not a permutation.
var ErrInvalidRemap = errors.New("ledmodule: remap table is not a permutation")

// Many modules are wired with digits out of left to right order. These are
// the logical to physical tables for the common ones.
var (
	// RemapTM1637SixDigit fixes the "2 1 0 5 4 3" order of most 6-digit TM1637
	// modules.
	RemapTM1637SixDigit = []int{2, 1, 0, 5, 4, 3}
	// RemapHc595EightDigit fixes the "4 5 6 7 0 1 2 3" order of the 8-digit
	// dual 74HC595 modules from diymore.cc.
	RemapHc595EightDigit = []int{4, 5, 6, 7, 0, 1, 2, 3}
)

// RemapReversed returns a table for modules whose digit 0 is the right most
// one, like most 8-digit MAX7219 modules.
func RemapReversed(n int) []int {
	r := make([]int, n)
	for i := range n {
		r[i] = n - 1 - i
	}
	return r
}

// Remap maps logical digit positions to the physical position of the wiring
// and back. A nil *Remap is the identity mapping.
type Remap struct {
	physical []int
	logical  []int
}

// NewRemap returns a Remap where logical position i is wired to physical
// position logicalToPhysical[i]. The inverse table is computed once here.
func NewRemap(logicalToPhysical []int) (*Remap, error) {
	n := len(logicalToPhysical)
	if n == 0 {
		return nil, ErrInvalidRemap
	}
	r := &Remap{physical: make([]int, n), logical: make([]int, n)}
	seen := make([]bool, n)
	for i, p := range logicalToPhysical {
		if p < 0 || p >= n || seen[p] {
			return nil, ErrInvalidRemap
		}
		seen[p] = true
		r.physical[i] = p
		r.logical[p] = i
	}
	return r, nil
}

// Len returns the number of positions, or 0 for the identity mapping.
func (r *Remap) Len() int {
	if r == nil {
		return 0
	}
	return len(r.physical)
}

// Physical returns the physical position of logical position pos.
func (r *Remap) Physical(pos int) int {
	if r == nil || pos < 0 || pos >= len(r.physical) {
		return pos
	}
	return r.physical[pos]
}

// Logical returns the logical position shown at physical position pos.
func (r *Remap) Logical(pos int) int {
	if r == nil || pos < 0 || pos >= len(r.logical) {
		return pos
	}
	return r.logical[pos]
}
