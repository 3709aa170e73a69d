// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"testing"

	"github.com/bbc/dvbcss-synctiming/model"
)

// flashCapture builds a single-channel capture whose peak signal is low
// background noise except for pulses of the given widths (milliseconds),
// starting at the given millisecond offsets.
func flashCapture(totalMillis int, pulses []struct{ start, width int }) model.Capture {
	blocks := make([]model.Block, totalMillis)
	for i := range blocks {
		blocks[i] = model.Block{Min: []uint8{5}, Max: []uint8{20}}
	}
	for _, p := range pulses {
		for i := p.start; i < p.start+p.width && i < totalMillis; i++ {
			blocks[i] = model.Block{Min: []uint8{5}, Max: []uint8{220}}
		}
	}
	return model.Capture{Blocks: blocks, StartDeviceMicros: 0, NumChannels: 1}
}

func TestDetectSinglePulse(t *testing.T) {
	capture := flashCapture(500, []struct{ start, width int }{{200, 40}})

	pulses := Detect(capture, 0, 0, model.Flash, 0.04)
	if len(pulses) != 1 {
		t.Fatalf("got %d pulses, want 1: %+v", len(pulses), pulses)
	}
	p := pulses[0]
	wantMid := int64((200 + 239) / 2 * 1000) // midpoint of millisecond indices 200..239
	if d := p.MidInstant - wantMid; d < -2000 || d > 2000 {
		t.Errorf("MidInstant = %d, want close to %d", p.MidInstant, wantMid)
	}
}

func TestDetectHysteresisAbsorbsFlicker(t *testing.T) {
	// one pulse from 100-140ms, with a brief dip below threshold at 120ms
	// that should be absorbed as flicker, not treated as two pulses.
	capture := flashCapture(400, []struct{ start, width int }{{100, 20}, {121, 19}})

	pulses := Detect(capture, 0, 0, model.Flash, 0.04)
	if len(pulses) != 1 {
		t.Fatalf("got %d pulses, want 1 (flicker should be absorbed): %+v", len(pulses), pulses)
	}
}

func TestDetectRejectsNoiseWidth(t *testing.T) {
	// width much smaller than approxDuration/4: should be rejected as noise.
	capture := flashCapture(400, []struct{ start, width int }{{100, 1}})

	pulses := Detect(capture, 0, 0, model.Flash, 0.04)
	if len(pulses) != 0 {
		t.Fatalf("got %d pulses, want 0 (should be rejected as noise): %+v", len(pulses), pulses)
	}
}

func TestDetectBeepUsesEnvelope(t *testing.T) {
	blocks := make([]model.Block, 300)
	for i := range blocks {
		blocks[i] = model.Block{Min: []uint8{120}, Max: []uint8{130}} // envelope 10: quiet
	}
	for i := 100; i < 140; i++ {
		blocks[i] = model.Block{Min: []uint8{20}, Max: []uint8{230}} // envelope 210: loud
	}
	capture := model.Capture{Blocks: blocks, NumChannels: 1}

	pulses := Detect(capture, 0, 0, model.Beep, 0.04)
	if len(pulses) != 1 {
		t.Fatalf("got %d pulses, want 1: %+v", len(pulses), pulses)
	}
}
