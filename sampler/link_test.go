// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sampler

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// fakeSampler is a canned io.ReadWriteCloser standing in for the
// microcontroller: each Write of a single opcode byte enqueues the
// matching scripted response, readable back via Read.
type fakeSampler struct {
	script map[byte][]byte
	reply  *bytes.Buffer
	closed bool
}

func newFakeSampler(ts uint32) *fakeSampler {
	be := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	script := map[byte][]byte{
		'0': be(ts),
		'1': be(ts),
		'T': be(ts),
		'4': append(be(ts), append(be(2), be(23040)...)...),
	}
	return &fakeSampler{script: script, reply: new(bytes.Buffer)}
}

func (f *fakeSampler) Write(p []byte) (int, error) {
	for _, b := range p {
		resp, ok := f.script[b]
		if !ok {
			continue
		}
		f.reply.Write(resp)
	}
	return len(p), nil
}

func (f *fakeSampler) Read(p []byte) (int, error) {
	if f.reply.Len() == 0 {
		return 0, io.EOF
	}
	return f.reply.Read(p)
}

func (f *fakeSampler) Close() error {
	f.closed = true
	return nil
}

func TestNumBlocks(t *testing.T) {
	for _, tc := range []struct {
		nActive int
		want    int
	}{
		{1, 46080},
		{2, 23040},
		{3, 15360},
		{4, 11520},
	} {
		if got := NumBlocks(tc.nActive); got != tc.want {
			t.Errorf("NumBlocks(%d) = %d, want %d", tc.nActive, got, tc.want)
		}
	}
}

func TestLinkPing(t *testing.T) {
	fake := newFakeSampler(123456)
	link := NewLink(fake)

	ts, err := link.Ping()
	if err != nil {
		t.Fatalf("could not ping: %+v", err)
	}
	if got, want := ts, int64(123456); got != want {
		t.Fatalf("invalid timestamp: got=%d, want=%d", got, want)
	}
}

func TestLinkEnableAndPrepare(t *testing.T) {
	fake := newFakeSampler(42)
	link := NewLink(fake)

	if err := link.EnableChannel(0); err != nil {
		t.Fatalf("could not enable channel 0: %+v", err)
	}
	if err := link.EnableChannel(1); err != nil {
		t.Fatalf("could not enable channel 1: %+v", err)
	}

	nActive, nBlocks, err := link.Prepare()
	if err != nil {
		t.Fatalf("could not prepare: %+v", err)
	}
	if got, want := nActive, 2; got != want {
		t.Fatalf("invalid nActive: got=%d, want=%d", got, want)
	}
	if got, want := nBlocks, 23040; got != want {
		t.Fatalf("invalid nBlocks: got=%d, want=%d", got, want)
	}
}

func TestLinkPrepareZeroFault(t *testing.T) {
	fake := newFakeSampler(0)
	be := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	fake.script['4'] = append(be(0), append(be(0), be(0)...)...)
	link := NewLink(fake)

	_, _, err := link.Prepare()
	if err == nil {
		t.Fatalf("expected a link fault for a zero prepare response")
	}
}

func TestLinkBulkRoundTrip(t *testing.T) {
	fake := newFakeSampler(7)
	be := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	fake.script['4'] = append(be(7), append(be(1), be(2)...)...)
	link := NewLink(fake)

	_ = link.EnableChannel(0)
	_, nBlocks, err := link.Prepare()
	if err != nil {
		t.Fatalf("could not prepare: %+v", err)
	}

	payload := []byte{0xAA, 0x11, 0xBB, 0x22} // block0: max=0xAA min=0x11; block1: max=0xBB min=0x22
	fake.script['B'] = append(be(7), append(be(uint32(len(payload))), payload...)...)

	capt, err := link.Bulk()
	if err != nil {
		t.Fatalf("could not bulk: %+v", err)
	}
	if got, want := len(capt.Blocks), nBlocks; got != want {
		t.Fatalf("invalid number of blocks: got=%d, want=%d", got, want)
	}
	if got, want := capt.Blocks[0].Max[0], uint8(0xAA); got != want {
		t.Fatalf("invalid block0 max: got=0x%x, want=0x%x", got, want)
	}
	if got, want := capt.Blocks[1].Min[0], uint8(0x22); got != want {
		t.Fatalf("invalid block1 min: got=0x%x, want=0x%x", got, want)
	}
}

func TestLinkBulkCountMismatch(t *testing.T) {
	fake := newFakeSampler(7)
	be := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	fake.script['4'] = append(be(7), append(be(1), be(1)...)...)
	link := NewLink(fake)
	_ = link.EnableChannel(0)
	_, _, err := link.Prepare()
	if err != nil {
		t.Fatalf("could not prepare: %+v", err)
	}

	fake.script['B'] = append(be(7), be(99)...) // wrong count, no payload
	_, err = link.Bulk()
	if err == nil {
		t.Fatalf("expected a bulk count mismatch error")
	}
}
