// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispersion implements the dispersion recorder (§4.6): an
// append-only, time-ordered log of wall-clock dispersion, queryable as a
// piecewise-constant upper bound on wall-clock uncertainty.
package dispersion

import (
	"sort"
	"sync"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Recorder is the append-only dispersion log fed by the wall-clock
// client's DispersionFunc (§4.3, §4.6). It is safe for concurrent use by
// one writer and any number of readers.
type Recorder struct {
	mu     sync.RWMutex
	points []model.DispersionPoint // ascending WallClockInstant, receipt order
	frozen []model.DispersionPoint // snapshot taken by Freeze, nil until then
}

// NewRecorder returns an empty recorder for the client role.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewConstantZero returns a recorder pre-seeded to report zero dispersion
// for any query instant, for the server role, where this host is the
// wall-clock reference and reports no dispersion outward (§4.3).
func NewConstantZero() *Recorder {
	return &Recorder{points: []model.DispersionPoint{{WallClockInstant: 0, Dispersion: 0}}}
}

// Record appends a dispersion observation. Events must arrive in
// non-decreasing WallClockInstant order (§5, Ordering guarantees (b));
// Record panics on an out-of-order insertion, since that would indicate a
// broken caller rather than a recoverable runtime condition.
func (r *Recorder) Record(p model.DispersionPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.points); n > 0 && p.WallClockInstant < r.points[n-1].WallClockInstant {
		panic("dispersion: out-of-order record")
	}
	r.points = append(r.points, p)
}

// At returns the dispersion at wall-clock instant w: the most recently
// recorded value at or before w, or the first record's value if w
// precedes every record (§4.6, §8 Dispersion lookup). At panics if no
// record has ever been made.
func (r *Recorder) At(w int64) float64 {
	r.mu.RLock()
	pts := r.frozen
	if pts == nil {
		pts = r.points
	}
	r.mu.RUnlock()

	if len(pts) == 0 {
		panic("dispersion: At called with no recorded points")
	}

	// first index where pts[i].WallClockInstant > w; the answer is the
	// point just before it, or pts[0] if there is none.
	i := sort.Search(len(pts), func(i int) bool {
		return pts[i].WallClockInstant > w
	})
	if i == 0 {
		return pts[0].Dispersion
	}
	return pts[i-1].Dispersion
}

// Freeze captures an immutable snapshot of the log as of now, so the
// correlator observes a fixed view from ANALYSING entry onward (§5,
// Ordering guarantees (c)). Freeze is a one-shot operation; later calls
// are no-ops.
func (r *Recorder) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen != nil {
		return
	}
	r.frozen = append(make([]model.DispersionPoint, 0, len(r.points)), r.points...)
}
