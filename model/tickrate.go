// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// TickRate is a positive rational giving timeline ticks per second,
// computed as Num/Den, e.g. Num=90000, Den=1 for a 90kHz timeline.
type TickRate struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Hz returns the tick rate as ticks-per-second.
func (r TickRate) Hz() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// TicksFromSeconds converts a duration in seconds to a (fractional) tick
// count at this rate.
func (r TickRate) TicksFromSeconds(s float64) float64 {
	return s * r.Hz()
}

// SecondsFromTicks converts a tick count at this rate to seconds.
func (r TickRate) SecondsFromTicks(ticks float64) float64 {
	hz := r.Hz()
	if hz == 0 {
		return 0
	}
	return ticks / hz
}

// Valid reports whether r is a well-formed, positive rate.
func (r TickRate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}
