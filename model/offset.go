// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// OffsetEstimate is a single clock-offset sample: a ping/pong exchange
// with the sampler that brackets the device clock against the host
// wall-clock. HalfRoundTrip bounds the estimate's uncertainty.
type OffsetEstimate struct {
	Host          int64   // host wall-clock instant, nanoseconds
	Device        int64   // device-clock instant, microseconds
	HalfRoundTrip float64 // seconds, >= 0
}

// offsetSecs returns device-seconds minus host-seconds for this estimate.
func (e OffsetEstimate) offsetSecs() float64 {
	return float64(e.Device)/1e6 - float64(e.Host)/1e9
}

// Interpolate returns the estimated device-clock instant (in
// microseconds) at host wall-clock instant h (nanoseconds), linearly
// interpolating the (device-host) offset between the two bracketing
// estimates lo and hi, plus the conservative error bound in seconds per
// §4.2: bound = lo.HalfRoundTrip + hi.HalfRoundTrip.
//
// lo and hi need not be ordered lo.Host <= hi.Host: the result lies on
// the line through both estimates either way; h outside the bracketed
// host interval extrapolates linearly.
func Interpolate(lo, hi OffsetEstimate, h int64) (device float64, bound float64) {
	bound = lo.HalfRoundTrip + hi.HalfRoundTrip

	hSecs := float64(h) / 1e9
	if hi.Host == lo.Host {
		return (hSecs + lo.offsetSecs()) * 1e6, bound
	}

	frac := float64(h-lo.Host) / float64(hi.Host-lo.Host)
	offset := lo.offsetSecs() + frac*(hi.offsetSecs()-lo.offsetSecs())

	return (hSecs + offset) * 1e6, bound
}

// HostFromDevice returns the estimated host wall-clock instant (in
// nanoseconds) at device-clock instant d (microseconds), inverting the
// same affine map as Interpolate, plus its conservative error bound.
// This is the device-clock → host-wall-clock step of §4.9.
func HostFromDevice(lo, hi OffsetEstimate, d float64) (hostNanos float64, bound float64) {
	bound = lo.HalfRoundTrip + hi.HalfRoundTrip

	if hi.Device == lo.Device {
		return float64(lo.Host), bound
	}

	frac := (d - float64(lo.Device)) / float64(hi.Device-lo.Device)
	host := float64(lo.Host) + frac*float64(hi.Host-lo.Host)

	return host, bound
}
