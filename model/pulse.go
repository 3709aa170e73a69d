// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// Kind distinguishes the two physical pulse types the test video emits.
type Kind int

const (
	Flash Kind = iota
	Beep
)

func (k Kind) String() string {
	switch k {
	case Flash:
		return "flash"
	case Beep:
		return "beep"
	default:
		return "unknown"
	}
}

// Pulse is a detected event on one channel: a rising-to-falling envelope
// crossing, reported as its device-clock midpoint and half-width.
type Pulse struct {
	ChannelID  int
	Kind       Kind
	MidInstant int64   // device-clock microseconds
	HalfWidth  float64 // microseconds
}
