// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package orchestrate implements the measurement orchestrator (§4.10):
// the state machine that arms the protocol services, brackets a sampler
// capture with clock-offset estimates, and drives the analysis pipeline
// through to a verdict.
package orchestrate

// State is one point in the orchestrator's state machine (§4.10).
type State int

const (
	Idle State = iota
	Arming
	WaitPeer
	Syncing
	Sampling
	Uploading
	Analysing
	Done
	Fault
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Arming:
		return "ARMING"
	case WaitPeer:
		return "WAIT_PEER"
	case Syncing:
		return "SYNCING"
	case Sampling:
		return "SAMPLING"
	case Uploading:
		return "UPLOADING"
	case Analysing:
		return "ANALYSING"
	case Done:
		return "DONE"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes which side of the synchronisation protocols this
// run plays.
type Role int

const (
	// RoleTV measures a TV: the orchestrator dials the device under
	// test's wall-clock/timeline/content-id servers (network client).
	RoleTV Role = iota
	// RoleCSA measures a companion-screen app: the orchestrator serves
	// the three protocols itself, driving its own known correlation
	// (network server).
	RoleCSA
)

func (r Role) String() string {
	if r == RoleCSA {
		return "csa"
	}
	return "tv"
}
