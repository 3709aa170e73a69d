// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sampler

import (
	"time"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Estimator derives clock-offset estimates (§4.2) from ping/pong
// exchanges with a Link. At least two estimates per measurement — one
// before and one after Sample — are mandatory (§4.2, §5 ordering
// guarantees); no sampler traffic may overlap a ping exchange.
type Estimator struct {
	link *Link
	now  func() time.Time // overridable for tests
}

// NewEstimator builds an Estimator around link.
func NewEstimator(link *Link) *Estimator {
	return &Estimator{link: link, now: time.Now}
}

// Estimate performs one ping/pong exchange and returns the resulting
// clock-offset estimate: host is the midpoint of send and receive, device
// is the device-clock timestamp in the response, and halfRoundTrip is
// half the round-trip latency.
func (e *Estimator) Estimate() (model.OffsetEstimate, error) {
	t0 := e.now()
	device, err := e.link.Ping()
	if err != nil {
		return model.OffsetEstimate{}, err
	}
	t1 := e.now()

	host := t0.Add(t1.Sub(t0) / 2).UnixNano()
	hrt := t1.Sub(t0).Seconds() / 2

	return model.OffsetEstimate{
		Host:          host,
		Device:        device,
		HalfRoundTrip: hrt,
	}, nil
}
