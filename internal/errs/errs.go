// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs holds the measurement-pipeline error taxonomy of §7: a
// small set of sentinel kinds that every fatal error wraps, so the
// orchestrator can classify a failure without string-matching its
// message and map it to a CLI exit code.
package errs

import "errors"

// Kind identifies one of the taxonomy entries from §7.
type Kind int

const (
	_ Kind = iota
	LinkFault
	ProtocolFault
	NoTimeline
	InsufficientObservations
	DispersionCeiling
	OutOfTolerance
	UserAbort
)

func (k Kind) String() string {
	switch k {
	case LinkFault:
		return "link-fault"
	case ProtocolFault:
		return "protocol-fault"
	case NoTimeline:
		return "no-timeline"
	case InsufficientObservations:
		return "insufficient-observations"
	case DispersionCeiling:
		return "dispersion-ceiling"
	case OutOfTolerance:
		return "out-of-tolerance"
	case UserAbort:
		return "user-abort"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind except OutOfTolerance (which is reported
// as a verdict, not an error), usable with errors.Is. Component errors
// should wrap one of these with fmt.Errorf("...: %w", errs.LinkFaultErr).
var (
	LinkFaultErr                = &kindError{LinkFault, "link fault"}
	ProtocolFaultErr            = &kindError{ProtocolFault, "protocol fault"}
	NoTimelineErr               = &kindError{NoTimeline, "no timeline available"}
	InsufficientObservationsErr = &kindError{InsufficientObservations, "insufficient observations"}
	DispersionCeilingErr        = &kindError{DispersionCeiling, "dispersion ceiling exceeded"}
	UserAbortErr                = &kindError{UserAbort, "user abort"}
)

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// KindOf classifies err against the taxonomy, returning false if err
// (or anything it wraps) does not match a known kind.
func KindOf(err error) (Kind, bool) {
	for _, sentinel := range []*kindError{
		LinkFaultErr, ProtocolFaultErr, NoTimelineErr,
		InsufficientObservationsErr, DispersionCeilingErr, UserAbortErr,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.kind, true
		}
	}
	return 0, false
}
