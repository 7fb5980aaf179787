// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219_test

import (
	"log"
	"time"

	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ledsegment/ledmodule"
	"github.com/GermanBionicSystems/ledsegment/max7219"
)

// Shows a counter on an 8 digit module whose digit 0 is on the right.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	s, err := spireg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	dev, err := max7219.NewSPI(s, 1, 8, &max7219.Opts{Remap: ledmodule.RemapReversed(8)})
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.Begin(); err != nil {
		log.Fatal(err)
	}
	defer dev.End()

	_ = dev.TestDisplay(true)
	time.Sleep(time.Second * 1)
	_ = dev.TestDisplay(false)

	digits := []byte{0x3f, 0x06, 0x5b, 0x4f, 0x66, 0x6d, 0x7d, 0x07, 0x7f, 0x6f}
	dev.SetBrightness(1)
	for i := range 1000 {
		for pos, n := 7, i; pos >= 0; pos, n = pos-1, n/10 {
			dev.SetPatternAt(pos, digits[n%10])
		}
		if err := dev.Flush(); err != nil {
			log.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
