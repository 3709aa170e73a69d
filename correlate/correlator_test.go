// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package correlate

import (
	"errors"
	"math"
	"testing"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
)

func TestCorrelateFindsExactOffset(t *testing.T) {
	expected := []float64{0, 100, 200, 300, 400, 500, 600}
	observed := []float64{200.5, 300.5, 400.5} // offset k=2, residual +0.5 each
	bounds := []float64{1, 1, 1}

	got, err := Correlate(observed, bounds, expected, 3)
	if err != nil {
		t.Fatalf("could not correlate: %+v", err)
	}
	if got.Offset != 2 {
		t.Fatalf("invalid offset: got=%d, want=2", got.Offset)
	}
	if math.Abs(got.Mean-0.5) > 1e-9 {
		t.Fatalf("invalid mean residual: got=%v, want=0.5", got.Mean)
	}
	if got.Jitter > 1e-9 {
		t.Fatalf("invalid jitter: got=%v, want~0", got.Jitter)
	}
}

func TestCorrelateInsufficientObservations(t *testing.T) {
	expected := []float64{0, 100, 200, 300}
	observed := []float64{200}
	bounds := []float64{1}

	_, err := Correlate(observed, bounds, expected, 3)
	if !errors.Is(err, errs.InsufficientObservationsErr) {
		t.Fatalf("expected an insufficient-observations error, got %+v", err)
	}
}

func TestCorrelatePicksLowestVarianceOffset(t *testing.T) {
	// expected sequence has two candidate windows; only one matches well.
	expected := []float64{0, 40, 50, 1000, 1010, 1020}
	observed := []float64{1000.1, 1009.9, 1020.2}
	bounds := []float64{1, 1, 1}

	got, err := Correlate(observed, bounds, expected, 3)
	if err != nil {
		t.Fatalf("could not correlate: %+v", err)
	}
	if got.Offset != 3 {
		t.Fatalf("invalid offset: got=%d, want=3", got.Offset)
	}
}
