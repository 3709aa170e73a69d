// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// DispersionPoint is one entry in a dispersion record: a time-ordered
// (wall-clock instant, dispersion) pair. Dispersion is a non-negative
// upper bound on wall-clock uncertainty and is held constant between
// points (piecewise-constant).
type DispersionPoint struct {
	WallClockInstant int64   // nanoseconds
	Dispersion       float64 // seconds, >= 0
}
