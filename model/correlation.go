// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// Correlation is the affine map from a reference-clock instant to a
// timeline tick: tick(t) = TimelineTick + (t-RefClockInstant)*tickRate*Speed.
//
// Speed==0 encodes a paused timeline. A zero-value Correlation with
// Null==true signals "no timeline currently available".
type Correlation struct {
	RefClockInstant int64   // nanoseconds, in the wall-clock domain
	TimelineTick    int64   // ticks
	Speed           float64 // timeline speed multiplier; 0 == paused

	Null bool // true iff this correlation carries no information
}

// NullCorrelation is the sentinel meaning "timeline unavailable".
var NullCorrelation = Correlation{Null: true}

// Paused reports whether this correlation freezes timeline progression.
func (c Correlation) Paused() bool {
	return !c.Null && c.Speed == 0
}

// Tick evaluates the correlation at wall-clock instant t (nanoseconds),
// given the tick rate. It is only meaningful for a non-null correlation.
func (c Correlation) Tick(t int64, rate TickRate) float64 {
	dt := float64(t-c.RefClockInstant) / 1e9 // seconds
	return float64(c.TimelineTick) + dt*rate.Hz()*c.Speed
}
