// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package correlate implements the sequence correlator (§4.8): it aligns
// the observed pulse instants against the expected maximal-length
// sequence by scanning every offset and minimising the residual variance.
package correlate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
)

// Residual is one observation's offset from its matched expectation,
// carried alongside the error interval reported by the time translator.
type Residual struct {
	ObservedIndex int
	ExpectedIndex int
	Value         float64 // observed - expected, in ticks
	Bound         float64 // ± error interval, in ticks
}

// Result is the correlator's verdict: the best-fit offset into the
// expected sequence, the mean residual and its jitter, and the per-pulse
// residuals that produced them (§4.8 step 4).
type Result struct {
	Offset    int
	Mean      float64
	Jitter    float64
	Residuals []Residual
}

// Correlate aligns observed (length N) against expected (length M >= N),
// where bounds[i] is the error interval for observed[i] (§4.9). It
// returns errs.InsufficientObservationsErr if N is smaller than
// patternWindowLength (§4.8 Precondition).
func Correlate(observed []float64, bounds []float64, expected []float64, patternWindowLength int) (Result, error) {
	n := len(observed)
	m := len(expected)

	if n < patternWindowLength {
		return Result{}, fmt.Errorf(
			"correlate: %d observations is fewer than the pattern window length %d: %w",
			n, patternWindowLength, errs.InsufficientObservationsErr)
	}
	if m < n {
		return Result{}, fmt.Errorf(
			"correlate: expected sequence (%d) is shorter than the observed sequence (%d): %w",
			m, n, errs.InsufficientObservationsErr)
	}

	residuals := make([]float64, n)

	var (
		bestK        int
		bestVariance = math.Inf(1)
		bestMean     float64
		haveBest     bool
	)

	for k := 0; k <= m-n; k++ {
		for i := 0; i < n; i++ {
			residuals[i] = observed[i] - expected[i+k]
		}
		mean := stat.Mean(residuals, nil)
		variance := stat.Variance(residuals, nil)
		// stat.Variance is the sample (N-1) variance; §4.8 asks for the
		// population variance, which only rescales every candidate by the
		// same constant factor n/(n-1) and so never changes which k wins,
		// but is kept exact since Result.Jitter is reported to the caller.
		if n > 1 {
			variance *= float64(n-1) / float64(n)
		} else {
			variance = 0
		}

		switch {
		case !haveBest:
			bestK, bestVariance, bestMean, haveBest = k, variance, mean, true
		case variance < bestVariance:
			bestK, bestVariance, bestMean = k, variance, mean
		case variance == bestVariance && math.Abs(mean) < math.Abs(bestMean):
			// ties broken by smallest |mean(r)|, then smallest k (§4.8 step 3);
			// smallest k falls out for free since k only increases here.
			bestK, bestMean = k, mean
		}
	}

	out := make([]Residual, n)
	for i := 0; i < n; i++ {
		r := observed[i] - expected[i+bestK]
		out[i] = Residual{
			ObservedIndex: i,
			ExpectedIndex: i + bestK,
			Value:         r,
			Bound:         bounds[i],
		}
	}

	return Result{
		Offset:    bestK,
		Mean:      bestMean,
		Jitter:    math.Sqrt(bestVariance),
		Residuals: out,
	}, nil
}
