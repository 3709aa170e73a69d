// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"testing"

	"github.com/bbc/dvbcss-synctiming/model"
)

func TestToWireNullCorrelation(t *testing.T) {
	ct := model.NullCT("content-1", "urn:selector")
	w := toWire(ct)

	if got, want := w.ContentID, "content-1"; got != want {
		t.Fatalf("invalid contentId: got=%q, want=%q", got, want)
	}
	if w.ContentTime != nil {
		t.Fatalf("expected nil ContentTime for a null correlation, got=%+v", *w.ContentTime)
	}
	if w.WallClockTime != nil {
		t.Fatalf("expected nil WallClockTime for a null correlation, got=%+v", *w.WallClockTime)
	}
}

func TestWireRoundTrip(t *testing.T) {
	ct := model.ControlTimestamp{
		ContentID: "content-1",
		Selector:  "urn:selector",
		TickRate:  model.TickRate{Num: 25, Den: 1},
		Correlation: model.Correlation{
			RefClockInstant: 1_000_000_000,
			TimelineTick:    50,
			Speed:           1,
		},
	}

	got := fromWire(toWire(ct))
	if got.Correlation.Null {
		t.Fatalf("round-tripped correlation is unexpectedly null")
	}
	if got, want := got.Correlation.RefClockInstant, ct.Correlation.RefClockInstant; got != want {
		t.Errorf("invalid RefClockInstant: got=%d, want=%d", got, want)
	}
	if got, want := got.Correlation.TimelineTick, ct.Correlation.TimelineTick; got != want {
		t.Errorf("invalid TimelineTick: got=%d, want=%d", got, want)
	}
	if got, want := got.Correlation.Speed, ct.Correlation.Speed; got != want {
		t.Errorf("invalid Speed: got=%v, want=%v", got, want)
	}
}

func TestWireDefaultSpeedWhenAbsent(t *testing.T) {
	w := ctWire{
		ContentID:        "content-1",
		TimelineSelector: "urn:selector",
		ContentTime:      int64Ptr(10),
		WallClockTime:    int64Ptr(2_000_000_000),
	}
	ct := fromWire(w)
	if got, want := ct.Correlation.Speed, 1.0; got != want {
		t.Fatalf("invalid default speed: got=%v, want=%v", got, want)
	}
}

func int64Ptr(v int64) *int64 { return &v }
