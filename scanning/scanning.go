// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scanning multiplexes a seven-segment display wired as a
// ledmatrix.Matrix, lighting one digit at a time fast enough for every digit
// to appear lit.
//
// Each call to RenderFieldNow draws one field. Without brightness control a
// field is one digit. With brightness control each digit is shown during
// SubFields consecutive fields and is lit in the first Brightness of them.
//
// The scanner can be driven three ways:
//
//   - Run, which renders from a ticker until the context is cancelled.
//   - RenderFieldWhenReady, called as often as possible from a loop.
//   - RenderFieldNow, called from an external timer at FieldPeriod.
package scanning

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GermanBionicSystems/ledsegment/ledmatrix"
	"github.com/GermanBionicSystems/ledsegment/ledmodule"
)

// DefaultFramesPerSecond is the refresh rate of the whole display used when
// Opts.FramesPerSecond is 0.
const DefaultFramesPerSecond = 60

// Opts configures a Scanner.
type Opts struct {
	// SubFields is the number of fields per digit, which is also the maximum
	// brightness. 0 and 1 disable brightness control.
	SubFields int
	// FramesPerSecond is the refresh rate of the whole display.
	FramesPerSecond int
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// OnError is called by Run when a field fails to render. Scanning goes on
	// and the failed digit is redrawn on its next field. It defaults to
	// logging the error.
	OnError func(err error)
}

// DefaultOpts is a display without brightness control refreshed at 60Hz.
var DefaultOpts = Opts{
	SubFields:       1,
	FramesPerSecond: DefaultFramesPerSecond,
}

// maxSubFields is the number of brightness levels a byte can hold.
const maxSubFields = 255

// Scanner renders a ledmodule.Module on a Matrix.
//
// Content is written through the embedded Module from any goroutine. Calls
// that render or change the scanning state are serialized internally.
type Scanner struct {
	*ledmodule.Module

	matrix    ledmatrix.Matrix
	subFields int
	fps       int
	clock     clockwork.Clock
	onError   func(err error)

	mu          sync.Mutex
	fieldPeriod time.Duration
	lastRender  time.Time
	digit       int
	prevDigit   int
	subField    int
	pattern     byte
	redraw      bool
	sleeping    bool
}

// New returns a Scanner for numDigits digits. opts may be nil for
// DefaultOpts.
func New(m ledmatrix.Matrix, numDigits int, opts *Opts) (*Scanner, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	subFields := min(max(opts.SubFields, 1), maxSubFields)
	mod, err := ledmodule.New(numDigits, byte(subFields))
	if err != nil {
		return nil, err
	}
	s := &Scanner{
		Module:    mod,
		matrix:    m,
		subFields: subFields,
		fps:       opts.FramesPerSecond,
		clock:     opts.Clock,
		onError:   opts.OnError,
	}
	if s.fps <= 0 {
		s.fps = DefaultFramesPerSecond
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.onError == nil {
		s.onError = func(err error) {
			log.Printf("scanning: %v", err)
		}
	}
	s.fieldPeriod = s.computeFieldPeriod()
	return s, nil
}

func (s *Scanner) String() string {
	return fmt.Sprintf("Scanner{%s, digits:%d, subfields:%d}", s.matrix, s.NumDigits(), s.subFields)
}

// FramesPerSecond returns the refresh rate of the whole display.
func (s *Scanner) FramesPerSecond() int {
	return s.fps
}

// SubFields returns the number of fields per digit.
func (s *Scanner) SubFields() int {
	return s.subFields
}

// FieldsPerFrame returns the number of fields needed to draw every digit once.
func (s *Scanner) FieldsPerFrame() int {
	return s.NumDigits() * s.subFields
}

// FieldsPerSecond returns the rate at which RenderFieldNow must be called.
func (s *Scanner) FieldsPerSecond() int {
	return s.fps * s.FieldsPerFrame()
}

// FieldPeriod returns the time between two fields.
func (s *Scanner) FieldPeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldPeriod
}

func (s *Scanner) computeFieldPeriod() time.Duration {
	return time.Second / time.Duration(s.FieldsPerSecond())
}

// Begin initializes the matrix, blanks it and resets the scan to digit 0.
// With brightness control the brightness is set to half.
func (s *Scanner) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldPeriod = s.computeFieldPeriod()
	s.lastRender = s.clock.Now()
	s.digit = 0
	s.prevDigit = s.NumDigits() - 1
	s.subField = 0
	s.pattern = 0
	s.redraw = true
	s.sleeping = false
	if err := s.matrix.Begin(); err != nil {
		return err
	}
	if err := s.matrix.Clear(); err != nil {
		return err
	}
	if s.subFields > 1 {
		s.SetBrightness(byte(s.subFields / 2))
	}
	return nil
}

// End blanks the display and releases the matrix.
func (s *Scanner) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.matrix.Clear(); err != nil {
		return err
	}
	return s.matrix.End()
}

// RenderFieldWhenReady renders the next field if at least FieldPeriod elapsed
// since the previous one. It reports whether a field was rendered.
func (s *Scanner) RenderFieldWhenReady() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if now.Sub(s.lastRender) < s.fieldPeriod {
		return false, nil
	}
	s.lastRender = now
	return true, s.render()
}

// RenderFieldNow renders the next field immediately. It must be called every
// FieldPeriod.
func (s *Scanner) RenderFieldNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

// Run renders a field every FieldPeriod until ctx is done, then blanks the
// display. Rendering errors are passed to Opts.OnError and do not stop the
// scan. It returns the error of blanking the display.
func (s *Scanner) Run(ctx context.Context) error {
	t := s.clock.NewTicker(s.FieldPeriod())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			err := s.matrix.Clear()
			s.mu.Unlock()
			return err
		case <-t.Chan():
			if err := s.RenderFieldNow(); err != nil {
				s.onError(err)
			}
		}
	}
}

// PrepareToSleep blanks the display. Rendering is then a no-op until
// WakeFromSleep.
func (s *Scanner) PrepareToSleep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeping = true
	return s.matrix.Clear()
}

// WakeFromSleep resumes rendering.
func (s *Scanner) WakeFromSleep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeping = false
	s.redraw = true
	s.lastRender = s.clock.Now()
}

// IsSleeping reports whether PrepareToSleep was called without a matching
// WakeFromSleep.
func (s *Scanner) IsSleeping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleeping
}

func (s *Scanner) render() error {
	if s.sleeping {
		return nil
	}
	if s.subFields > 1 {
		return s.renderModulated()
	}
	return s.renderPlain()
}

func (s *Scanner) renderPlain() error {
	err := s.matrix.Draw(s.digit, s.PatternAt(s.digit))
	s.prevDigit = s.digit
	s.digit = (s.digit + 1) % s.NumDigits()
	return err
}

func (s *Scanner) renderModulated() error {
	var pattern byte
	if s.isLit(s.BrightnessAt(s.digit)) {
		pattern = s.PatternAt(s.digit)
	}

	var err error
	switch {
	case s.redraw || s.digit != s.prevDigit:
		err = s.matrix.Draw(s.digit, pattern)
	case pattern == s.pattern:
	case pattern == 0:
		err = s.matrix.DisableGroup(s.digit)
	default:
		err = s.matrix.Draw(s.digit, pattern)
	}
	s.redraw = err != nil
	s.pattern = pattern

	s.prevDigit = s.digit
	s.subField++
	if s.subField >= s.subFields {
		s.subField = 0
		s.digit = (s.digit + 1) % s.NumDigits()
	}
	return err
}

// isLit reports whether a digit with brightness b is on during the current
// sub-field. Brightness SubFields-1 and above is always on.
func (s *Scanner) isLit(b byte) bool {
	switch {
	case b == 0:
		return false
	case int(b) >= s.subFields-1:
		return true
	default:
		return s.subField < int(b)
	}
}
