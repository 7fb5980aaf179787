// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pintest provides gpio pins that record every transition into a
// shared Log, and decoders that turn such a log back into bytes. It is used
// to verify bit-banged protocols and the ordering of multiplexed writes.
package pintest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Event is one call on a recorded pin.
type Event struct {
	Pin   string
	Level gpio.Level
	// Released is true when the pin was switched to input. The line is then
	// considered pulled up.
	Released bool
}

func (e Event) String() string {
	if e.Released {
		return e.Pin + ":Z"
	}
	return fmt.Sprintf("%s:%s", e.Pin, e.Level)
}

// Log collects events from several pins in call order.
type Log struct {
	mu     sync.Mutex
	events []Event
}

func (l *Log) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Strings returns the recorded events formatted as "name:level".
func (l *Log) Strings() []string {
	ev := l.Events()
	out := make([]string, len(ev))
	for i, e := range ev {
		out[i] = e.String()
	}
	return out
}

// Reset drops every recorded event.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Pin is a gpio.PinIO that records Out and In calls.
type Pin struct {
	N   string
	Num int
	Log *Log

	// ReadLevel is returned by Read while the pin is an input.
	ReadLevel gpio.Level
	// Input, when set, overrides ReadLevel.
	Input func() gpio.Level

	mu       sync.Mutex
	level    gpio.Level
	released bool
	pull     gpio.Pull
}

// New returns a Pin recording into log.
func New(name string, number int, log *Log) *Pin {
	return &Pin{N: name, Num: number, Log: log}
}

// Level returns the level of the line, High when released.
func (p *Pin) Level() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return gpio.High
	}
	return p.level
}

// Released reports whether the pin is an input.
func (p *Pin) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Pin) String() string {
	return p.N
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.N
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.Num
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	if p.Released() {
		return "In"
	}
	return "Out"
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("pintest: edges are not supported")
	}
	p.mu.Lock()
	p.released = true
	p.pull = pull
	p.mu.Unlock()
	if p.Log != nil {
		p.Log.add(Event{Pin: p.N, Level: gpio.High, Released: true})
	}
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	p.mu.Lock()
	released, level := p.released, p.level
	p.mu.Unlock()
	if !released {
		return level
	}
	if p.Input != nil {
		return p.Input()
	}
	return p.ReadLevel
}

// WaitForEdge implements gpio.PinIn.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.released = false
	p.level = l
	p.mu.Unlock()
	if p.Log != nil {
		p.Log.add(Event{Pin: p.N, Level: l})
	}
	return nil
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("pintest: PWM is not supported")
}

var _ gpio.PinIO = &Pin{}
