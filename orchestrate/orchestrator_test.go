// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
	"github.com/bbc/dvbcss-synctiming/sampler"
)

// fakeSampler is the same canned microcontroller stand-in used by the
// sampler package's own tests: every opcode byte written enqueues its
// scripted reply.
type fakeSampler struct {
	script map[byte][]byte
	reply  *bytes.Buffer
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// newFlashFixture builds a fake sampler that reports one active channel,
// nBlocks one-millisecond blocks of a single flash pulse at the very
// start of the capture, and a constant device-clock ping reading so the
// clock-offset bracket collapses to a single point (keeping the
// translated tick deterministic regardless of scheduling jitter).
func newFlashFixture(nBlocks int) *fakeSampler {
	const pingTS = 1_000_000

	payload := make([]byte, nBlocks*2)
	for i := 0; i < nBlocks; i++ {
		max, min := uint8(20), uint8(5)
		if i < 40 {
			max, min = 220, 5 // a 40ms flash pulse at the start
		}
		payload[2*i] = max
		payload[2*i+1] = min
	}

	f := &fakeSampler{reply: new(bytes.Buffer)}
	f.script = map[byte][]byte{
		'0': be32(pingTS),
		'T': be32(pingTS),
		'4': append(be32(pingTS), append(be32(1), be32(uint32(nBlocks))...)...),
		'S': append(be32(pingTS), append(be32(0), append(be32(uint32(nBlocks*1000)), be32(uint32(nBlocks))...)...)...),
		'B': append(be32(pingTS), append(be32(uint32(len(payload))), payload...)...),
	}
	return f
}

func (f *fakeSampler) Write(p []byte) (int, error) {
	for _, b := range p {
		if resp, ok := f.script[b]; ok {
			f.reply.Write(resp)
		}
	}
	return len(p), nil
}

func (f *fakeSampler) Read(p []byte) (int, error) {
	if f.reply.Len() == 0 {
		return 0, io.EOF
	}
	return f.reply.Read(p)
}

func (f *fakeSampler) Close() error { return nil }

func TestOrchestratorCSARoleEndToEnd(t *testing.T) {
	link := sampler.NewLink(newFlashFixture(200))

	cfg := Config{
		Role:      RoleCSA,
		ContentID: "content-1",
		Selector:  "urn:selector",
		TickRate:  model.TickRate{Num: 1000, Den: 1},
		Anchor:    model.Anchor{FirstFrameTick: 0},
		Light: []Channel{{
			SamplerIndex: 0,
			ID:           0,
			Kind:         model.Flash,
			Metadata: model.Metadata{
				EventCentreTimes:        []float64{0},
				PatternWindowLength:     1,
				ApproxFlashDurationSecs: 0.04,
			},
		}},
		WCBindAddr:    "127.0.0.1:0",
		TSBindAddr:    "127.0.0.1:0",
		CIIBindAddr:   "127.0.0.1:0",
		ToleranceMs:   50,
		SampleTimeout: 5 * time.Second,
	}

	o := New(cfg, link)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("could not run measurement: %+v", err)
	}
	if !report.Pass {
		t.Fatalf("expected a passing verdict, got rows=%+v", report.Rows)
	}
	if got, want := o.State(), Done; got != want {
		t.Fatalf("invalid final state: got=%s, want=%s", got, want)
	}
}

func TestOrchestratorArmFailureRoutesToFault(t *testing.T) {
	link := sampler.NewLink(newFlashFixture(10))

	cfg := Config{
		Role:        RoleCSA,
		ContentID:   "content-1",
		TickRate:    model.TickRate{Num: 1000, Den: 1},
		WCBindAddr:  "not-a-valid-address",
		TSBindAddr:  "127.0.0.1:0",
		CIIBindAddr: "127.0.0.1:0",
	}
	o := New(cfg, link)

	_, err := o.Run(context.Background())
	if err == nil {
		t.Fatalf("expected an error for an unresolvable bind address")
	}
	if !errors.Is(err, errs.ProtocolFaultErr) {
		t.Fatalf("expected a protocol-fault error, got %+v", err)
	}
	if got, want := o.State(), Fault; got != want {
		t.Fatalf("invalid final state: got=%s, want=%s", got, want)
	}
}
