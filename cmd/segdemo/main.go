// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// segdemo shows a counter or a clock on a seven-segment LED display.
//
// Examples:
//
//	segdemo -driver tm1637 -clk GPIO23 -dio GPIO24 -digits 4 -clock
//	segdemo -driver max7219 -spi /dev/spidev0.0 -digits 8 -reverse
//	segdemo -driver direct -rpio -segments 2,3,4,5,6,7,8,9 -groups 10,11,12,13
//	segdemo -driver term -digits 6 -png snapshot.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/ledsegment/rpiopin"
	"github.com/GermanBionicSystems/ledsegment/segimage"
)

// hexDigits are the patterns of 0-F.
var hexDigits = [16]byte{
	0x3f, 0x06, 0x5b, 0x4f, 0x66, 0x6d, 0x7d, 0x07,
	0x7f, 0x6f, 0x77, 0x7c, 0x39, 0x5e, 0x79, 0x71,
}

// showNumber writes n right aligned, blanking leading zeros.
func showNumber(d display, n, base int) {
	num := d.NumDigits()
	for pos := num - 1; pos >= 0; pos-- {
		if n == 0 && pos != num-1 {
			d.SetPatternAt(pos, 0)
			continue
		}
		d.SetPatternAt(pos, hexDigits[n%base])
		n /= base
	}
}

// showClock writes HH.MM on the first 4 digits, with the separator blinking
// every second.
func showClock(d display, t time.Time) {
	v := []int{t.Hour() / 10, t.Hour() % 10, t.Minute() / 10, t.Minute() % 10}
	for pos, n := range v {
		if pos >= d.NumDigits() {
			break
		}
		d.SetPatternAt(pos, hexDigits[n])
	}
	if d.NumDigits() > 1 {
		d.SetDecimalPointAt(1, t.Second()%2 == 0)
	}
}

func run(ctx context.Context, d display, period time.Duration, clock bool, base int) error {
	t := time.NewTicker(period)
	defer t.Stop()
	for i := 0; ; i++ {
		if clock {
			showClock(d, time.Now())
		} else {
			showNumber(d, i, base)
		}
		if err := d.Flush(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func mainImpl() error {
	cfg := config{}
	flag.StringVar(&cfg.driver, "driver", "term", "one of tm1637, tm1638, tm1638anode, max7219, ht16k33, direct, hc595, dualhc595, term")
	flag.IntVar(&cfg.digits, "digits", 4, "number of digits")
	flag.BoolVar(&cfg.rpio, "rpio", false, "pins are BCM numbers accessed through /dev/gpiomem instead of periph pin names")
	flag.StringVar(&cfg.clk, "clk", "", "clock pin")
	flag.StringVar(&cfg.dio, "dio", "", "data pin")
	flag.StringVar(&cfg.stb, "stb", "", "strobe or latch pin")
	flag.StringVar(&cfg.spi, "spi", "", "SPI port to use; bit-banged over -stb, -clk and -dio when empty")
	flag.StringVar(&cfg.i2c, "i2c", "", "I²C bus to use; bit-banged over -clk and -dio when empty")
	flag.IntVar(&cfg.addr, "addr", 0x70, "I²C address")
	flag.StringVar(&cfg.segments, "segments", "", "comma separated segment pins, A first")
	flag.StringVar(&cfg.groups, "groups", "", "comma separated digit pins, digit 0 first")
	flag.BoolVar(&cfg.commonAnode, "anode", false, "common anode digits")
	flag.BoolVar(&cfg.reverse, "reverse", false, "digit 0 is on the right")
	flag.IntVar(&cfg.subFields, "subfields", 16, "brightness levels of scanned displays")
	flag.IntVar(&cfg.fps, "fps", 60, "frames per second of scanned displays")
	brightness := flag.Int("brightness", -1, "brightness; defaults to half")
	clock := flag.Bool("clock", false, "show the time instead of a counter")
	hex := flag.Bool("hex", false, "count in hexadecimal")
	period := flag.Duration("period", 100*time.Millisecond, "update period")
	duration := flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
	pngPath := flag.String("png", "", "write the last content as a PNG image")
	logPath := flag.String("log", "", "log to this file, rotated")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()

	switch {
	case *logPath != "":
		log.SetOutput(&lumberjack.Logger{Filename: *logPath, MaxSize: 1, MaxBackups: 3, MaxAge: 7})
	case !*verbose:
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	if cfg.rpio {
		if err := rpiopin.Open(); err != nil {
			return err
		}
		defer rpiopin.Close()
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
	}

	d, closer, err := cfg.open()
	if err != nil {
		return err
	}
	defer closer()
	log.Printf("using %s", d)

	if err := d.Begin(); err != nil {
		return err
	}
	b := d.MaxBrightness() / 2
	if *brightness >= 0 {
		b = byte(*brightness)
	}
	d.SetBrightness(b)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	base := 10
	if *hex {
		base = 16
	}
	err = run(ctx, d, *period, *clock, base)
	if *pngPath != "" {
		if perr := writePNG(*pngPath, d); err == nil {
			err = perr
		}
	}
	if eerr := d.End(); err == nil {
		err = eerr
	}
	return err
}

func writePNG(path string, d display) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	opts := segimage.DefaultOpts
	opts.Label = d.String()
	if err := segimage.WritePNG(f, d, &opts); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "segdemo: %s.\n", err)
		os.Exit(1)
	}
}
