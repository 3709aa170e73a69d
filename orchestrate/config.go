// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrate

import (
	"time"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Channel is one enabled sampler channel and the expected-pulse metadata
// that drives detection and correlation for it.
type Channel struct {
	SamplerIndex int // sampler's 0..3 opcode channel index
	ID           int // reported channel id, for the verdict table
	Kind         model.Kind
	Metadata     model.Metadata
}

// Config is the full set of parameters for one measurement run (§4.10,
// §6 CLI surface).
type Config struct {
	Role     Role
	ContentID string
	Selector  string
	TickRate  model.TickRate
	Anchor    model.Anchor

	// Light and Audio are empty when that modality is not measured.
	// Each may hold up to two channels (the sampler's four opcode
	// indices split two-and-two between the modalities, --light0/--light1,
	// --audio0/--audio1), measured simultaneously, matching the original
	// tool's per-pin loop.
	Light []Channel
	Audio []Channel

	// RoleTV (client): dial addresses of the device under test's services.
	WCAddr, TSAddr, CIIAddr string
	// RoleCSA (server): bind addresses this tool serves on.
	WCBindAddr, TSBindAddr, CIIBindAddr string

	ToleranceMs   float64
	MeasureSecs   int
	MaxDispersion time.Duration // RoleTV only: ceiling at SYNCING entry

	WaitPeerTimeout time.Duration
	SyncTimeout     time.Duration
	SampleTimeout   time.Duration
	UploadTimeout   time.Duration

	// Confirm blocks until the operator confirms the peer is connected
	// (RoleCSA's WAIT_PEER -> SYNCING transition, §4.10). Nil skips the
	// prompt, proceeding immediately.
	Confirm func() error

	// Alert, if non-nil, is called on entry to Fault and on an
	// out-of-tolerance verdict. The cmd binaries wire it to a mail alert
	// configured through the MAIL_* environment variables.
	Alert func(subject, body string)
}

func (c Config) withDefaults() Config {
	if c.WaitPeerTimeout == 0 {
		c.WaitPeerTimeout = 30 * time.Second
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 60 * time.Second
	}
	if c.SampleTimeout == 0 {
		c.SampleTimeout = 60 * time.Second // 'S' blocks up to ~45s; leave margin
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = 15 * time.Second
	}
	if c.MaxDispersion == 0 {
		c.MaxDispersion = 50 * time.Millisecond
	}
	return c
}
