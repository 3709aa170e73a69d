// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// Metadata is the expected-pulse list supplied alongside the test video:
// ordered centre times in seconds from sequence start, plus per-kind
// approximate duration, the maximal-length-sequence window length, and
// the derived sequence duration.
type Metadata struct {
	EventCentreTimes        []float64 `json:"eventCentreTimes"`
	DurationSecs            int       `json:"durationSecs"`
	PatternWindowLength     int       `json:"patternWindowLength"`
	FPS                     float64   `json:"fps"`
	Size                    [2]int    `json:"size"`
	ApproxFlashDurationSecs float64   `json:"approxFlashDurationSecs"`
	ApproxBeepDurationSecs  float64   `json:"approxBeepDurationSecs"`
}

// ApproxDuration returns the approximate pulse duration, in seconds, for
// the given kind.
func (m Metadata) ApproxDuration(k Kind) float64 {
	switch k {
	case Flash:
		return m.ApproxFlashDurationSecs
	case Beep:
		return m.ApproxBeepDurationSecs
	default:
		return 0
	}
}

// Anchor is the timeline-tick value declared to correspond to the first
// frame of the test video.
type Anchor struct {
	FirstFrameTick int64
}

// ExpectedTicks returns the expected timeline tick of every pulse
// centre-time in m, given the measurement anchor and tick rate.
func (m Metadata) ExpectedTicks(a Anchor, rate TickRate) []float64 {
	out := make([]float64, len(m.EventCentreTimes))
	for i, t := range m.EventCentreTimes {
		out[i] = float64(a.FirstFrameTick) + rate.TicksFromSeconds(t)
	}
	return out
}
