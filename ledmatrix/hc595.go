// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledmatrix

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

// SingleHc595 is a Matrix whose elements are driven by a 74HC595 shift
// register and whose groups are wired to gpio pins.
//
// The 74HC595 is written over an spi.Conn, either a hardware SPI port or a
// softspi.Port.
type SingleHc595 struct {
	conn        spi.Conn
	groups      []gpio.PinIO
	elementMask byte
	groupMask   byte
	prevGroup   int
	// latched is the byte in the shift register output, or -1 when unknown.
	latched int
}

// NewSingleHc595 returns a SingleHc595 matrix. opts may be nil for
// DefaultOpts.
func NewSingleHc595(c spi.Conn, groups []gpio.PinIO, opts *Opts) (*SingleHc595, error) {
	if len(groups) == 0 {
		return nil, errNoGroups
	}
	// An invalid initial value forces the first write to happen, even if it's
	// 0.
	s := &SingleHc595{conn: c, groups: groups, latched: -1}
	s.elementMask, s.groupMask = masks(opts)
	return s, nil
}

func (s *SingleHc595) String() string {
	return fmt.Sprintf("SingleHc595{%s, groups:%d}", s.conn, len(s.groups))
}

// Begin drives the group lines to their off level.
func (s *SingleHc595) Begin() error {
	for _, p := range s.groups {
		if err := p.Out(level(0, s.groupMask)); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// End switches the group lines to floating inputs.
func (s *SingleHc595) End() error {
	for _, p := range s.groups {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			return wrap(err)
		}
	}
	return nil
}

func (s *SingleHc595) Draw(group int, elements byte) error {
	if group != s.prevGroup {
		if err := s.DisableGroup(s.prevGroup); err != nil {
			return err
		}
	}
	if err := s.drawElements(elements); err != nil {
		return err
	}
	return s.EnableGroup(group)
}

func (s *SingleHc595) EnableGroup(group int) error {
	s.prevGroup = group
	return wrap(s.groups[group].Out(level(1, s.groupMask)))
}

func (s *SingleHc595) DisableGroup(group int) error {
	s.prevGroup = group
	return wrap(s.groups[group].Out(level(0, s.groupMask)))
}

func (s *SingleHc595) Clear() error {
	for g := range s.groups {
		if err := s.DisableGroup(g); err != nil {
			return err
		}
	}
	return s.drawElements(0)
}

func (s *SingleHc595) drawElements(pattern byte) error {
	v := pattern ^ s.elementMask
	if s.latched == int(v) {
		return nil
	}
	if err := s.conn.Tx([]byte{v}, nil); err != nil {
		s.latched = -1
		return wrap(err)
	}
	s.latched = int(v)
	return nil
}

// ByteOrder is the order of the group and element bytes in the 16 bit
// transfer to two chained 74HC595.
type ByteOrder uint8

const (
	// GroupHighElementLow sends the group byte first, so it ends up in the
	// register farthest from the controller.
	GroupHighElementLow ByteOrder = iota
	// ElementHighGroupLow sends the element byte first.
	ElementHighGroupLow
)

// DualHc595Opts configures a DualHc595.
type DualHc595Opts struct {
	Opts
	ByteOrder ByteOrder
	// Remap maps a group index to the register output it is wired to. nil
	// means group i is on output Qi.
	Remap *ledmodule.Remap
}

// DualHc595 is a Matrix whose groups and elements are driven by two chained
// 74HC595 shift registers.
//
// Both bytes are latched at once, so a Draw never lights two groups.
type DualHc595 struct {
	conn         spi.Conn
	elementMask  byte
	groupMask    byte
	order        ByteOrder
	remap        *ledmodule.Remap
	prevElements byte
}

// NewDualHc595 returns a DualHc595 matrix. opts may be nil, in which case
// DefaultOpts and GroupHighElementLow are used.
func NewDualHc595(c spi.Conn, opts *DualHc595Opts) (*DualHc595, error) {
	d := &DualHc595{conn: c}
	if opts == nil {
		d.elementMask, d.groupMask = masks(nil)
		return d, nil
	}
	if opts.Remap != nil && opts.Remap.Len() > 8 {
		return nil, errTooManyLines
	}
	d.elementMask, d.groupMask = masks(&opts.Opts)
	d.order = opts.ByteOrder
	d.remap = opts.Remap
	return d, nil
}

func (d *DualHc595) String() string {
	return fmt.Sprintf("DualHc595{%s}", d.conn)
}

// Begin is a no-op; the registers hold whatever was last sent.
func (d *DualHc595) Begin() error {
	return nil
}

// End is a no-op.
func (d *DualHc595) End() error {
	return nil
}

func (d *DualHc595) Draw(group int, elements byte) error {
	d.prevElements = elements
	return d.send(byte(1)<<d.remap.Physical(group), elements)
}

func (d *DualHc595) EnableGroup(group int) error {
	return d.Draw(group, d.prevElements)
}

// DisableGroup turns off every group; only one can be on.
func (d *DualHc595) DisableGroup(group int) error {
	return d.send(0, d.prevElements)
}

func (d *DualHc595) Clear() error {
	d.prevElements = 0
	return d.send(0, 0)
}

func (d *DualHc595) send(groups, elements byte) error {
	g := groups ^ d.groupMask
	e := elements ^ d.elementMask
	w := []byte{g, e}
	if d.order == ElementHighGroupLow {
		w[0], w[1] = e, g
	}
	return wrap(d.conn.Tx(w, nil))
}

var _ Matrix = &SingleHc595{}
var _ Matrix = &DualHc595{}
