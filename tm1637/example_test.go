// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tm1637_test

import (
	"log"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ledsegment/tm1637"
	"github.com/GermanBionicSystems/ledsegment/tmi"
)

func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus := tmi.NewTwoWire(gpioreg.ByName("GPIO23"), gpioreg.ByName("GPIO24"), tmi.DefaultTM1637Delay)
	if err := bus.Begin(); err != nil {
		log.Fatal(err)
	}
	defer bus.End()

	dev, err := tm1637.New(bus, 4, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.Begin(); err != nil {
		log.Fatal(err)
	}
	defer dev.End()

	// "12.34", dimming one step per second. FlushIncremental sends at most one
	// digit per call, so it is called often.
	dev.SetPatterns(0x06, 0x5b|0x80, 0x4f, 0x66)
	for b := tm1637.MaxBrightness; b >= 0; b-- {
		dev.SetBrightness(byte(b))
		for range 100 {
			if err := dev.FlushIncremental(); err != nil {
				log.Print(err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}
