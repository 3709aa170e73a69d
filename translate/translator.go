// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package translate implements the time translator (§4.9): it composes
// the clock-offset estimator, the wall-clock service and the timeline
// service into a single device-clock-instant-to-timeline-tick mapping,
// with a conservative ± error interval expressed in ticks.
package translate

import (
	"fmt"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
)

// WallClock maps a local wall-clock instant to the synchronised
// wall-clock domain. wallclock.Client satisfies this; a server-role
// measurement (where the local clock already is the reference) is
// satisfied by Identity.
type WallClock interface {
	SyncedNow(localNanos int64) int64
}

// Identity is the trivial WallClock for the server role, where this
// host's clock is already the reference and needs no correction.
type Identity struct{}

// SyncedNow implements WallClock.
func (Identity) SyncedNow(localNanos int64) int64 { return localNanos }

// Dispersion supplies the dispersion bound recorded for a wall-clock
// instant. dispersion.Recorder satisfies this.
type Dispersion interface {
	At(w int64) float64
}

// TimelineSource supplies the latest control timestamp known to the
// caller. timeline.Client satisfies this, as does a local accessor for
// the server role.
type TimelineSource interface {
	Latest() (model.ControlTimestamp, bool)
}

// Translator composes C2's pre/post offset estimates with a WallClock,
// a Dispersion log and a TimelineSource to map device-clock instants to
// timeline ticks (§4.9).
type Translator struct {
	pre, post model.OffsetEstimate
	clock     WallClock
	disp      Dispersion
	timeline  TimelineSource
}

// New constructs a Translator bracketed by the pre- and post-sampling
// clock-offset estimates (§5, Ordering guarantees (a)).
func New(pre, post model.OffsetEstimate, clock WallClock, disp Dispersion, timeline TimelineSource) *Translator {
	return &Translator{pre: pre, post: post, clock: clock, disp: disp, timeline: timeline}
}

// Translate maps a device-clock instant (microseconds) to a timeline
// tick, returning the tick value and its conservative ± error bound, in
// ticks. It fails with errs.NoTimelineErr if no non-null, non-paused
// correlation is in effect at the translated wall-clock instant.
func (t *Translator) Translate(deviceMicros int64) (tick float64, boundTicks float64, err error) {
	hostNanos, c2Bound := model.HostFromDevice(t.pre, t.post, float64(deviceMicros))
	synced := t.clock.SyncedNow(int64(hostNanos))

	ct, ok := t.timeline.Latest()
	if !ok || ct.Correlation.Null || ct.Correlation.Paused() {
		return 0, 0, fmt.Errorf("translate: no timeline in effect at instant %d: %w", synced, errs.NoTimelineErr)
	}
	if !ct.TickRate.Valid() {
		return 0, 0, fmt.Errorf("translate: invalid tick rate %+v: %w", ct.TickRate, errs.NoTimelineErr)
	}

	tick = ct.Correlation.Tick(synced, ct.TickRate)

	hz := ct.TickRate.Hz()
	const (
		samplingQuantumSecs = 0.5e-3
		deviceQuantumSecs   = 1e-6
	)
	boundSecs := c2Bound + t.disp.At(synced) + 0.5/hz + samplingQuantumSecs + deviceQuantumSecs
	boundTicks = boundSecs * hz

	return tick, boundTicks, nil
}
