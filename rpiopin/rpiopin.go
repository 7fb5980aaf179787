// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rpiopin exposes the Raspberry Pi GPIO lines accessed through
// github.com/stianeikeland/go-rpio as gpio.PinIO.
//
// go-rpio maps the GPIO registers in memory, so toggling a pin costs a few
// nanoseconds. That is what the scanning engine needs to multiplex a direct
// wired display at several kHz when periph's host drivers are not available.
//
// Call Open before using any pin.
package rpiopin

import (
	"errors"
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Open maps the GPIO registers. It requires /dev/gpiomem or root access.
func Open() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("rpiopin: %w", err)
	}
	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return rpio.Close()
}

// pwmCycle is the number of clock ticks per PWM period.
const pwmCycle = 1024

var errInvalidFrequency = errors.New("rpiopin: invalid PWM frequency")

// Pin is a BCM numbered GPIO line.
type Pin struct {
	num  int
	pull gpio.Pull
}

// New returns the pin with the BCM number num.
func New(num int) *Pin {
	return &Pin{num: num, pull: gpio.PullNoChange}
}

// Pins returns the pins with the BCM numbers nums, in order.
func Pins(nums ...int) []gpio.PinIO {
	out := make([]gpio.PinIO, len(nums))
	for i, n := range nums {
		out[i] = New(n)
	}
	return out
}

func (p *Pin) r() rpio.Pin {
	return rpio.Pin(p.num)
}

func (p *Pin) String() string {
	return p.Name()
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return fmt.Sprintf("GPIO%d", p.num)
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.num
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "GPIO"
}

// In implements gpio.PinIn. Edge detection is polled by WaitForEdge.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	r := p.r()
	r.Input()
	if pull != gpio.PullNoChange {
		r.Pull(toPull(pull))
		p.pull = pull
	}
	r.Detect(toEdge(edge))
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	return p.r().Read() == rpio.High
}

// WaitForEdge polls for the edge selected with In. A negative timeout waits
// forever.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if p.r().EdgeDetected() {
			return true
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Pull implements gpio.PinIn. It returns the last pull set with In, since
// the pull registers cannot be read back on every model.
func (p *Pin) Pull() gpio.Pull {
	return p.pull
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	// GPIO0-8 default to pull up, the others to pull down.
	if p.num <= 8 {
		return gpio.PullUp
	}
	return gpio.PullDown
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	r := p.r()
	r.Output()
	if l {
		r.High()
	} else {
		r.Low()
	}
	return nil
}

// PWM implements gpio.PinOut. Only the pins connected to a PWM channel
// (GPIO12, 13, 18 and 19) support it.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if f <= 0 {
		return errInvalidFrequency
	}
	r := p.r()
	r.Mode(rpio.Pwm)
	r.Freq(int(f/physic.Hertz) * pwmCycle)
	r.DutyCycle(dutyLen(duty), pwmCycle)
	return nil
}

// dutyLen converts duty to a number of ticks out of pwmCycle.
func dutyLen(duty gpio.Duty) uint32 {
	if duty <= 0 {
		return 0
	}
	if duty >= gpio.DutyMax {
		return pwmCycle
	}
	return uint32(int64(duty) * pwmCycle / int64(gpio.DutyMax))
}

func toPull(p gpio.Pull) rpio.Pull {
	switch p {
	case gpio.PullUp:
		return rpio.PullUp
	case gpio.PullDown:
		return rpio.PullDown
	default:
		return rpio.PullOff
	}
}

func toEdge(e gpio.Edge) rpio.Edge {
	switch e {
	case gpio.RisingEdge:
		return rpio.RiseEdge
	case gpio.FallingEdge:
		return rpio.FallEdge
	case gpio.BothEdges:
		return rpio.AnyEdge
	default:
		return rpio.NoEdge
	}
}

var _ gpio.PinIO = &Pin{}
