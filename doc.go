// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledsegment is a container for seven-segment LED display drivers.
//
// Multiplexed modules without a controller chip are driven by the scanning
// package on top of one of the ledmatrix wirings. Modules with a controller
// chip (tm1637, tm1638, max7219, ht16k33) hold their state in a
// ledmodule.Module and push it to the chip with Flush or FlushIncremental.
package ledsegment
