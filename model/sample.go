// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// Block is one millisecond of (min,max) samples for every active
// channel, covering exactly one millisecond of the device's local timer.
type Block struct {
	Min []uint8 // one entry per active channel, ascending enabled index
	Max []uint8
}

// Capture is an ordered sequence of millisecond blocks plus the
// device-clock instants (microseconds) marking the first block's start
// and the last block's end.
type Capture struct {
	Blocks            []Block
	StartDeviceMicros int64
	EndDeviceMicros   int64

	// NumChannels is the number of active channels each Block carries.
	NumChannels int
}

// BlockStart returns the device-clock instant (microseconds) at which
// block i begins, assuming exactly-one-millisecond blocks back to back.
func (c Capture) BlockStart(i int) int64 {
	return c.StartDeviceMicros + int64(i)*1000
}
