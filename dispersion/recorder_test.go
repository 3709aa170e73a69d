// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispersion

import (
	"testing"

	"github.com/bbc/dvbcss-synctiming/model"
)

func TestRecorderLookup(t *testing.T) {
	r := NewRecorder()
	r.Record(model.DispersionPoint{WallClockInstant: 100, Dispersion: 0.002})
	r.Record(model.DispersionPoint{WallClockInstant: 200, Dispersion: 0.004})
	r.Record(model.DispersionPoint{WallClockInstant: 300, Dispersion: 0.006})

	for _, tc := range []struct {
		w    int64
		want float64
	}{
		{0, 0.002},   // precedes all records: first record's value
		{100, 0.002}, // exact match
		{150, 0.002}, // between records: most recent at or before w
		{200, 0.004},
		{250, 0.004},
		{300, 0.006},
		{1000, 0.006}, // after the last record
	} {
		if got := r.At(tc.w); got != tc.want {
			t.Errorf("At(%d) = %v, want %v", tc.w, got, tc.want)
		}
	}
}

func TestRecorderFreezeIsolatesLaterWrites(t *testing.T) {
	r := NewRecorder()
	r.Record(model.DispersionPoint{WallClockInstant: 100, Dispersion: 0.002})
	r.Freeze()
	r.Record(model.DispersionPoint{WallClockInstant: 200, Dispersion: 0.050})

	if got, want := r.At(1000), 0.002; got != want {
		t.Fatalf("At(1000) after freeze = %v, want %v (snapshot should ignore the later write)", got, want)
	}
}

func TestConstantZero(t *testing.T) {
	r := NewConstantZero()
	for _, w := range []int64{-1000, 0, 1, 1 << 40} {
		if got := r.At(w); got != 0 {
			t.Errorf("At(%d) = %v, want 0", w, got)
		}
	}
}

func TestRecorderOutOfOrderPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an out-of-order record")
		}
	}()
	r := NewRecorder()
	r.Record(model.DispersionPoint{WallClockInstant: 200})
	r.Record(model.DispersionPoint{WallClockInstant: 100})
}
