// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledmatrix

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Direct is a Matrix where every line is wired to a gpio pin, usually through
// a resistor on the elements and a transistor on the groups.
type Direct struct {
	elements    []gpio.PinIO
	groups      []gpio.PinIO
	elementMask byte
	groupMask   byte
	prevGroup   int
}

// NewDirect returns a Direct matrix. elements[0] is bit 0 of the pattern,
// usually segment A. opts may be nil for DefaultOpts.
func NewDirect(elements, groups []gpio.PinIO, opts *Opts) (*Direct, error) {
	if len(elements) == 0 {
		return nil, errNoElements
	}
	if len(groups) == 0 {
		return nil, errNoGroups
	}
	if len(elements) > 8 {
		return nil, errTooManyLines
	}
	d := &Direct{elements: elements, groups: groups}
	d.elementMask, d.groupMask = masks(opts)
	return d, nil
}

func (d *Direct) String() string {
	return fmt.Sprintf("Direct{elements:%d, groups:%d}", len(d.elements), len(d.groups))
}

// Begin drives every line to its off level.
func (d *Direct) Begin() error {
	for _, p := range d.elements {
		if err := p.Out(level(0, d.elementMask)); err != nil {
			return wrap(err)
		}
	}
	for _, p := range d.groups {
		if err := p.Out(level(0, d.groupMask)); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// End switches every line to a floating input.
func (d *Direct) End() error {
	for _, p := range d.elements {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			return wrap(err)
		}
	}
	for _, p := range d.groups {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			return wrap(err)
		}
	}
	return nil
}

func (d *Direct) Draw(group int, elements byte) error {
	if group != d.prevGroup {
		if err := d.DisableGroup(d.prevGroup); err != nil {
			return err
		}
	}
	if err := d.drawElements(elements); err != nil {
		return err
	}
	return d.EnableGroup(group)
}

func (d *Direct) EnableGroup(group int) error {
	d.prevGroup = group
	return wrap(d.groups[group].Out(level(1, d.groupMask)))
}

func (d *Direct) DisableGroup(group int) error {
	d.prevGroup = group
	return wrap(d.groups[group].Out(level(0, d.groupMask)))
}

func (d *Direct) Clear() error {
	for g := range d.groups {
		if err := d.DisableGroup(g); err != nil {
			return err
		}
	}
	return d.drawElements(0)
}

func (d *Direct) drawElements(pattern byte) error {
	for _, p := range d.elements {
		if err := p.Out(level(pattern, d.elementMask)); err != nil {
			return wrap(err)
		}
		pattern >>= 1
	}
	return nil
}

// level returns the wire level of bit 0 of b.
func level(b, mask byte) gpio.Level {
	return gpio.Level((b^mask)&1 != 0)
}

var _ Matrix = &Direct{}
