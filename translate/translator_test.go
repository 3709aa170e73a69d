// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package translate

import (
	"errors"
	"math"
	"testing"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
)

type constTimeline struct {
	ct   model.ControlTimestamp
	have bool
}

func (c constTimeline) Latest() (model.ControlTimestamp, bool) { return c.ct, c.have }

type constDispersion float64

func (d constDispersion) At(int64) float64 { return float64(d) }

func TestTranslateComposesBound(t *testing.T) {
	pre := model.OffsetEstimate{Host: 0, Device: 0, HalfRoundTrip: 0.001}
	post := model.OffsetEstimate{Host: 10_000_000_000, Device: 10_000_000, HalfRoundTrip: 0.002}

	rate := model.TickRate{Num: 1000, Den: 1} // 1000 Hz
	tl := constTimeline{
		ct: model.ControlTimestamp{
			ContentID: "content-1",
			TickRate:  rate,
			Correlation: model.Correlation{
				RefClockInstant: 0,
				TimelineTick:    0,
				Speed:           1,
			},
		},
		have: true,
	}

	tr := New(pre, post, Identity{}, constDispersion(0.003), tl)

	tick, bound, err := tr.Translate(5_000_000) // device microseconds, midpoint
	if err != nil {
		t.Fatalf("could not translate: %+v", err)
	}

	wantTick := 5.0 * 1000 // 5 seconds at 1000Hz = 5000 ticks
	if math.Abs(tick-wantTick) > 1e-6 {
		t.Fatalf("invalid tick: got=%v, want=%v", tick, wantTick)
	}

	// bound = (c2Bound=0.003) + (disp=0.003) + (0.5/1000) + 0.0005 + 1e-6, in seconds,
	// multiplied back by tickRate (1000Hz) to express in ticks.
	wantBoundSecs := 0.003 + 0.003 + 0.0005 + 0.0005 + 0.000001
	wantBoundTicks := wantBoundSecs * 1000
	if math.Abs(bound-wantBoundTicks) > 1e-6 {
		t.Fatalf("invalid bound: got=%v, want=%v", bound, wantBoundTicks)
	}
}

func TestTranslateNoTimelineWhenNull(t *testing.T) {
	pre := model.OffsetEstimate{Host: 0, Device: 0}
	post := model.OffsetEstimate{Host: 1_000_000_000, Device: 1_000_000}
	tl := constTimeline{ct: model.NullCT("content-1", "urn:selector"), have: true}

	tr := New(pre, post, Identity{}, constDispersion(0), tl)

	_, _, err := tr.Translate(500_000)
	if !errors.Is(err, errs.NoTimelineErr) {
		t.Fatalf("expected a no-timeline error, got %+v", err)
	}
}

func TestTranslateNoTimelineWhenPaused(t *testing.T) {
	pre := model.OffsetEstimate{Host: 0, Device: 0}
	post := model.OffsetEstimate{Host: 1_000_000_000, Device: 1_000_000}
	tl := constTimeline{
		ct: model.ControlTimestamp{
			TickRate:    model.TickRate{Num: 25, Den: 1},
			Correlation: model.Correlation{Speed: 0},
		},
		have: true,
	}

	tr := New(pre, post, Identity{}, constDispersion(0), tl)

	_, _, err := tr.Translate(500_000)
	if !errors.Is(err, errs.NoTimelineErr) {
		t.Fatalf("expected a no-timeline error for a paused correlation, got %+v", err)
	}
}
