// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tmi bit-bangs the serial protocols of the Titan Micro LED
// controllers over two or three gpio pins.
//
// The TM1637 uses a two wire protocol that looks like I2C electrically: same
// start and stop conditions, data sampled on the rising clock edge and an
// acknowledge bit after every byte. There is no address byte, and bytes are
// sent LSB first, so the hardware I2C controller cannot be used.
//
// The TM1638 uses a three wire protocol similar to SPI with a strobe line,
// also LSB first, with a bidirectional data line used to read the keys.
//
// # Datasheets
//
// https://www.mcielectronics.cl/website_MCI/static/documents/Datasheet_TM1637.pdf
//
// https://futuranet.it/futurashop/image/catalog/data/Download/TM1638_V1.3_EN.pdf
package tmi

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	// DefaultTM1637Delay is the half clock period used with the TM1637. The
	// chip handles 2µs, but most cheap modules have ~10nF capacitors on CLK and
	// DIO that slow down the edges so much that 100µs is needed.
	DefaultTM1637Delay = 100 * time.Microsecond
	// DefaultTM1638Delay is the half clock period used with the TM1638.
	DefaultTM1638Delay = time.Microsecond
)

// ErrNack is returned when the device did not acknowledge a byte.
var ErrNack = errors.New("tmi: byte not acknowledged")

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tmi: %w", err)
}

func delay(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// TwoWire talks to a TM1637 over an open drain CLK and DIO pair.
//
// The lines have pull-up resistors and must never be driven high: a high
// level is obtained by switching the pin to input, a low level by driving it
// low.
type TwoWire struct {
	clk   gpio.PinIO
	dio   gpio.PinIO
	delay time.Duration
}

// NewTwoWire returns a TwoWire using the given pins. delay is the time waited
// after each transition of either line.
func NewTwoWire(clk, dio gpio.PinIO, delay time.Duration) *TwoWire {
	return &TwoWire{clk: clk, dio: dio, delay: delay}
}

func (t *TwoWire) String() string {
	return fmt.Sprintf("TM1637{%s, %s}", t.clk, t.dio)
}

// Begin releases both lines so the bus idles high.
func (t *TwoWire) Begin() error {
	if err := t.clockHigh(); err != nil {
		return err
	}
	return t.dataHigh()
}

// End releases both lines.
func (t *TwoWire) End() error {
	return t.Begin()
}

// StartCondition pulls DIO low while CLK is high.
func (t *TwoWire) StartCondition() error {
	for _, f := range []func() error{t.clockHigh, t.dataHigh, t.dataLow, t.clockLow} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// StopCondition releases DIO while CLK is high.
func (t *TwoWire) StopCondition() error {
	for _, f := range []func() error{t.dataLow, t.clockHigh, t.dataHigh} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// SendByte clocks out b LSB first and reads the acknowledge bit. It returns
// ErrNack if the device left DIO high on the ninth clock.
func (t *TwoWire) SendByte(b byte) error {
	for range 8 {
		var err error
		if b&1 != 0 {
			err = t.dataHigh()
		} else {
			err = t.dataLow()
		}
		if err == nil {
			err = t.clockHigh()
		}
		if err == nil {
			err = t.clockLow()
		}
		if err != nil {
			return err
		}
		b >>= 1
	}
	return t.readAck()
}

// readAck samples DIO after the falling edge of the eighth clock, then pulses
// the ninth clock so the device releases the line.
func (t *TwoWire) readAck() error {
	if err := t.dataHigh(); err != nil {
		return err
	}
	nack := t.dio.Read() == gpio.High
	if err := t.clockHigh(); err != nil {
		return err
	}
	if err := t.clockLow(); err != nil {
		return err
	}
	if nack {
		return ErrNack
	}
	return nil
}

// ReadByte reads one byte LSB first, used to scan the keys, and acknowledges
// it.
func (t *TwoWire) ReadByte() (byte, error) {
	if err := t.dataHigh(); err != nil {
		return 0, err
	}
	var b byte
	for i := range 8 {
		if err := t.clockHigh(); err != nil {
			return 0, err
		}
		if t.dio.Read() == gpio.High {
			b |= 1 << i
		}
		if err := t.clockLow(); err != nil {
			return 0, err
		}
	}
	if err := t.dataLow(); err != nil {
		return 0, err
	}
	if err := t.clockHigh(); err != nil {
		return 0, err
	}
	if err := t.clockLow(); err != nil {
		return 0, err
	}
	return b, t.dataHigh()
}

func (t *TwoWire) release(p gpio.PinIO) error {
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return wrap(err)
	}
	delay(t.delay)
	return nil
}

func (t *TwoWire) pullLow(p gpio.PinIO) error {
	if err := p.Out(gpio.Low); err != nil {
		return wrap(err)
	}
	delay(t.delay)
	return nil
}

func (t *TwoWire) clockHigh() error { return t.release(t.clk) }
func (t *TwoWire) clockLow() error  { return t.pullLow(t.clk) }
func (t *TwoWire) dataHigh() error  { return t.release(t.dio) }
func (t *TwoWire) dataLow() error   { return t.pullLow(t.dio) }
