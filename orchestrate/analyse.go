// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrate

import (
	"fmt"

	"github.com/bbc/dvbcss-synctiming/correlate"
	"github.com/bbc/dvbcss-synctiming/detect"
	"github.com/bbc/dvbcss-synctiming/model"
	"github.com/bbc/dvbcss-synctiming/translate"
	"github.com/bbc/dvbcss-synctiming/verdict"
)

// analyse runs C7 (detect), C9 (translate), C8 (correlate) and C11
// (classify) over the captured buffer for every enabled channel, and
// merges the per-channel results into one report (§4.10, ANALYSING;
// §5 Ordering guarantees (c): the correlator sees the frozen snapshot
// Run already established via dispersion.Recorder.Freeze).
func (o *Orchestrator) analyse(pre, post model.OffsetEstimate, capture model.Capture, svc *services) (verdict.Report, error) {
	o.setState(Analysing)

	ct, haveCT := svc.timelineSource().Latest()
	tr := translate.New(pre, post, svc.wallClock(), svc.disp, staticTimeline{ct: ct, have: haveCT})

	var (
		allRows  []verdict.Row
		overall  = true
		anyRow   bool
	)

	for pos, ch := range o.channels() {
		pulses := detect.Detect(capture, pos, ch.ID, ch.Kind, ch.Metadata.ApproxDuration(ch.Kind))

		observed := make([]float64, len(pulses))
		bounds := make([]float64, len(pulses))
		for i, p := range pulses {
			tick, bound, err := tr.Translate(p.MidInstant)
			if err != nil {
				return verdict.Report{}, err
			}
			observed[i] = tick
			bounds[i] = bound
		}

		expected := ch.Metadata.ExpectedTicks(o.cfg.Anchor, o.cfg.TickRate)

		result, err := correlate.Correlate(observed, bounds, expected, ch.Metadata.PatternWindowLength)
		if err != nil {
			return verdict.Report{}, err
		}

		kinds := make([]model.Kind, len(result.Residuals))
		channelIDs := make([]int, len(result.Residuals))
		for i := range result.Residuals {
			kinds[i] = ch.Kind
			channelIDs[i] = ch.ID
		}

		toleranceTicks := o.cfg.TickRate.TicksFromSeconds(o.cfg.ToleranceMs / 1000)
		report := verdict.Classify(result, kinds, channelIDs, toleranceTicks)

		allRows = append(allRows, report.Rows...)
		overall = overall && report.Pass
		anyRow = true
	}

	if !anyRow {
		return verdict.Report{}, fmt.Errorf("orchestrate: no channel was enabled for this run")
	}

	return verdict.Report{
		Rows:      allRows,
		Tolerance: o.cfg.TickRate.TicksFromSeconds(o.cfg.ToleranceMs / 1000),
		Pass:      overall,
	}, nil
}

// staticTimeline freezes the control timestamp observed at ANALYSING
// entry, so the correlator sees the same immutable CT snapshot for
// every channel regardless of what the live timeline client decodes
// afterwards (§5 Ordering guarantees (c), symmetric with
// dispersion.Recorder.Freeze).
type staticTimeline struct {
	ct   model.ControlTimestamp
	have bool
}

func (s staticTimeline) Latest() (model.ControlTimestamp, bool) { return s.ct, s.have }
