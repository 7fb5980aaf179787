// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ht16k33_test

import (
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ledsegment/ht16k33"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	dev, err := ht16k33.New(b, &ht16k33.Opts{EnableColon: true})
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.Begin(); err != nil {
		log.Fatal(err)
	}
	defer dev.End()

	// "12:34" with a blinking colon.
	dev.SetPatterns(0x06, 0x5b, 0x4f, 0x66)
	for i := range 10 {
		dev.SetDecimalPointAt(1, i%2 == 0)
		if err := dev.Flush(); err != nil {
			log.Fatal(err)
		}
		time.Sleep(time.Second)
	}
}
