// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package detect implements the pulse detector (§4.7): threshold and
// hysteresis edge detection over the per-millisecond min/max envelopes
// captured by the sampler link.
package detect

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Detect scans the capture's channel chanIdx (the index into each
// Block's Min/Max slices, not the physical channel id) for pulses of the
// given kind and returns them ordered by MidInstant, deterministic and
// restartable (§4.7).
func Detect(capture model.Capture, chanIdx int, channelID int, kind model.Kind, approxDurationSecs float64) []model.Pulse {
	signal := signalOf(capture, chanIdx, kind)
	if len(signal) == 0 {
		return nil
	}

	threshold := thresholdOf(signal)
	holdMillis := int(approxDurationSecs * 500)

	var pulses []model.Pulse
	above := false
	r := 0

	i := 0
	for i < len(signal) {
		if !above {
			if signal[i] > threshold {
				above = true
				r = i
			}
			i++
			continue
		}

		if signal[i] <= threshold {
			f := i
			// hysteresis: if the signal rises again within holdMillis of f,
			// this falling edge was backlight modulation or per-frame
			// chopping, not the end of the pulse (§4.7 step 4).
			absorbed := false
			for j := f + 1; j < len(signal) && j <= f+holdMillis; j++ {
				if signal[j] > threshold {
					absorbed = true
					break
				}
			}
			if absorbed {
				i++
				continue
			}

			above = false
			if p, ok := buildPulse(capture, channelID, kind, r, f, approxDurationSecs); ok {
				pulses = append(pulses, p)
			}
		}
		i++
	}

	sort.SliceStable(pulses, func(a, b int) bool { return pulses[a].MidInstant < pulses[b].MidInstant })
	return pulses
}

// signalOf extracts the per-millisecond derived signal for one channel:
// the audio envelope max-min, or the light peak max, per §4.7.
func signalOf(capture model.Capture, chanIdx int, kind model.Kind) []float64 {
	out := make([]float64, len(capture.Blocks))
	for i, b := range capture.Blocks {
		if chanIdx >= len(b.Max) {
			continue
		}
		switch kind {
		case model.Beep:
			out[i] = float64(b.Max[chanIdx]) - float64(b.Min[chanIdx])
		default: // model.Flash
			out[i] = float64(b.Max[chanIdx])
		}
	}
	return out
}

// thresholdOf computes the midpoint between the 5th and 95th percentile
// of the signal (§4.7 step 1).
func thresholdOf(signal []float64) float64 {
	sorted := append([]float64(nil), signal...)
	sort.Float64s(sorted)

	floor := stat.Quantile(0.05, stat.Empirical, sorted, nil)
	ceiling := stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return (floor + ceiling) / 2
}

// buildPulse converts a [r,f] millisecond-index edge pair into a Pulse in
// the device clock, rejecting edges whose width fails the noise bounds of
// §4.7 step 6.
func buildPulse(capture model.Capture, channelID int, kind model.Kind, r, f int, approxDurationSecs float64) (model.Pulse, bool) {
	widthMillis := float64(f - r)
	approxMillis := approxDurationSecs * 1000
	if widthMillis < approxMillis/4 || widthMillis > approxMillis*3 {
		return model.Pulse{}, false
	}

	midMillis := float64(r+f) / 2
	mid := capture.StartDeviceMicros + int64(midMillis*1000)
	halfWidth := widthMillis / 2 * 1000

	return model.Pulse{
		ChannelID:  channelID,
		Kind:       kind,
		MidInstant: mid,
		HalfWidth:  halfWidth,
	}, true
}
