// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package verdict implements the verdict reporter (§4.11): per-pulse
// tolerance classification plus the stdout summary table and CSV export
// that present a measurement run's outcome.
package verdict

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/bbc/dvbcss-synctiming/correlate"
	"github.com/bbc/dvbcss-synctiming/model"
)

// Row is one pulse's classified residual, ready for reporting.
type Row struct {
	ChannelID     int
	Kind          model.Kind
	ExpectedTick  float64
	ObservedTick  float64
	ResidualTicks float64
	BoundTicks    float64
	InTolerance   bool
}

// Report is the overall verdict for a measurement run: pass iff every
// row is in tolerance (§4.11).
type Report struct {
	Rows      []Row
	Tolerance float64 // ticks
	Pass      bool
}

// Classify builds a Report from the correlator's result: row i is
// in-tolerance iff |residual_i| - bound_i <= tolerance (§4.11).
func Classify(result correlate.Result, kinds []model.Kind, channelIDs []int, tolerance float64) Report {
	rows := make([]Row, len(result.Residuals))
	pass := true
	for i, r := range result.Residuals {
		inTol := (absFloat(r.Value) - r.Bound) <= tolerance
		if !inTol {
			pass = false
		}
		row := Row{
			ResidualTicks: r.Value,
			BoundTicks:    r.Bound,
			InTolerance:   inTol,
		}
		if i < len(kinds) {
			row.Kind = kinds[i]
		}
		if i < len(channelIDs) {
			row.ChannelID = channelIDs[i]
		}
		rows[i] = row
	}
	return Report{Rows: rows, Tolerance: tolerance, Pass: pass}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// WriteTable renders the per-pulse summary table to w (§4 supplemented
// feature, --printMode): channel, kind, residual, bound, pass/fail, with
// residual and bound converted from ticks to milliseconds at the given
// tick rate.
func WriteTable(w io.Writer, report Report, rate model.TickRate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tKIND\tRESIDUAL(ms)\tBOUND(ms)\tRESULT")
	for _, row := range report.Rows {
		residualMs := rate.SecondsFromTicks(row.ResidualTicks) * 1000
		boundMs := rate.SecondsFromTicks(row.BoundTicks) * 1000
		result := "PASS"
		if !row.InTolerance {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%s\n", row.ChannelID, row.Kind, residualMs, boundMs, result)
	}
	overall := "PASS"
	if !report.Pass {
		overall = "FAIL"
	}
	fmt.Fprintf(tw, "\t\t\t\toverall: %s\n", overall)
	return tw.Flush()
}

// WriteCSV exports report to path as CSV, matching the columns of
// WriteTable (§4 supplemented feature, --csvOut).
func WriteCSV(path string, report Report, rate model.TickRate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("verdict: could not create %q: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"channel", "kind", "residual_ms", "bound_ms", "result"}); err != nil {
		return fmt.Errorf("verdict: could not write header: %w", err)
	}
	for _, row := range report.Rows {
		residualMs := rate.SecondsFromTicks(row.ResidualTicks) * 1000
		boundMs := rate.SecondsFromTicks(row.BoundTicks) * 1000
		result := "PASS"
		if !row.InTolerance {
			result = "FAIL"
		}
		record := []string{
			fmt.Sprintf("%d", row.ChannelID),
			row.Kind.String(),
			fmt.Sprintf("%.3f", residualMs),
			fmt.Sprintf("%.3f", boundMs),
			result,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("verdict: could not write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
