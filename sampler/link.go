// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sampler speaks the sampling microcontroller's eight-opcode
// command language over a USB virtual serial port (§4.1), and derives
// clock-offset estimates from ping/pong exchanges with it (§4.2).
package sampler

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"
	"golang.org/x/xerrors"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
)

// Opcodes of the sampler's command language (§4.1).
const (
	opEnable0 = '0'
	opEnable1 = '1'
	opEnable2 = '2'
	opEnable3 = '3'
	opPrepare = '4'
	opSample  = 'S'
	opBulk    = 'B'
	opPing    = 'T'
)

// BufferCapacity is the sampler's byte buffer capacity (§6).
const BufferCapacity = 92160

// NumBlocks returns the number of one-millisecond sampling blocks a
// prepare/sample cycle will use for nActive active channels (§4.1, §6).
func NumBlocks(nActive int) int {
	if nActive <= 0 {
		return 0
	}
	return BufferCapacity / (2 * nActive)
}

// Link is a framed binary conversation with the sampling microcontroller.
// It invariantly reads a four-byte big-endian device-clock microsecond
// counter as the first four bytes of every response before interpreting
// any opcode-specific payload.
type Link struct {
	rw      io.ReadWriteCloser
	buf     []byte
	err     error
	nActive int
	nBlocks int
}

// Open opens the USB virtual COM port at path, at the sampler's fixed
// baud rate and framing (2,304,200 baud, 8N1).
func Open(path string) (*Link, error) {
	mode := &serial.Mode{
		BaudRate: 2304200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("sampler: could not open %q: %w", path, err)
	}
	return NewLink(port), nil
}

// NewLink wraps an already-open transport, e.g. for tests.
func NewLink(rw io.ReadWriteCloser) *Link {
	return &Link{rw: rw, buf: make([]byte, 8)}
}

// Close releases the underlying transport. The microcontroller resets on
// the far end the next time it is opened.
func (l *Link) Close() error {
	return l.rw.Close()
}

// readTimestamp reads the universal four-byte big-endian device-clock
// microsecond counter that leads every response.
func (l *Link) readTimestamp() int64 {
	l.load(4)
	if l.err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint32(l.buf[:4]))
}

func (l *Link) load(n int) {
	if l.err != nil {
		return
	}
	if cap(l.buf) < n {
		l.buf = make([]byte, n)
	}
	l.buf = l.buf[:n]
	_, l.err = io.ReadFull(l.rw, l.buf[:n])
}

func (l *Link) readU32() uint32 {
	l.load(4)
	if l.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(l.buf[:4])
}

func (l *Link) send(op byte) {
	if l.err != nil {
		return
	}
	_, l.err = l.rw.Write([]byte{op})
}

func (l *Link) fault(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, errs.LinkFaultErr)...)
}

// Ping issues the 'T' opcode and returns the device-clock timestamp
// carried in the response, with no further payload. Used by the
// clock-offset estimator (§4.2).
func (l *Link) Ping() (deviceMicros int64, err error) {
	l.err = nil
	l.send(opPing)
	ts := l.readTimestamp()
	if l.err != nil {
		return 0, l.fault("sampler: ping failed")
	}
	return ts, nil
}

// EnableChannel enables sampling on channel index idx (0..3). Idempotent;
// must be called for every active channel before Prepare (§4.1, Open
// Question ii).
func (l *Link) EnableChannel(idx int) error {
	if idx < 0 || idx > 3 {
		return fmt.Errorf("sampler: invalid channel index %d", idx)
	}
	l.err = nil
	l.send(byte('0' + idx))
	l.readTimestamp()
	if l.err != nil {
		return l.fault("sampler: enable channel %d failed", idx)
	}
	return nil
}

// Prepare issues the '4' opcode and records the number of active
// channels and millisecond blocks the sampler reports, returning them.
func (l *Link) Prepare() (nActive, nBlocks int, err error) {
	l.err = nil
	l.send(opPrepare)
	l.readTimestamp()
	n := l.readU32()
	b := l.readU32()
	if l.err != nil {
		return 0, 0, l.fault("sampler: prepare failed")
	}
	if n == 0 || b == 0 {
		return 0, 0, l.fault("sampler: prepare returned zero channel configuration (n=%d, blocks=%d)", n, b)
	}

	l.nActive, l.nBlocks = int(n), int(b)
	return l.nActive, l.nBlocks, nil
}

// Sample issues the 'S' opcode, blocking for the duration of the
// requested sampling window (up to ~45s), and returns the device-clock
// instants bracketing the capture plus the number of blocks sampled.
func (l *Link) Sample() (startMicros, endMicros int64, nBlocks int, err error) {
	if l.nBlocks == 0 {
		return 0, 0, 0, fmt.Errorf("sampler: Sample called before a successful Prepare")
	}

	l.err = nil
	l.send(opSample)
	l.readTimestamp() // universal timestamp precedes the opcode payload
	start := l.readU32()
	end := l.readU32()
	n := l.readU32()
	if l.err != nil {
		return 0, 0, 0, l.fault("sampler: sample failed")
	}
	if int(n) != l.nBlocks {
		return 0, 0, 0, l.fault("sampler: sample returned %d blocks, want %d", n, l.nBlocks)
	}

	return int64(start), int64(end), int(n), nil
}

// Abort closes the underlying transport, aborting any in-flight Sample.
// The microcontroller will be reset for the next run (§5, Cancellation).
func (l *Link) Abort() error {
	return l.rw.Close()
}

// Bulk issues the 'B' opcode and reads back the sampled capture: a
// big-endian byte count followed by nBlocks*nActive*2 bytes, in
// (max,min) order per channel per block, channels in ascending enabled
// index order.
func (l *Link) Bulk() (model.Capture, error) {
	if l.nActive == 0 || l.nBlocks == 0 {
		return model.Capture{}, fmt.Errorf("sampler: Bulk called before a successful Prepare")
	}

	l.err = nil
	l.send(opBulk)
	l.readTimestamp()
	count := l.readU32()
	if l.err != nil {
		return model.Capture{}, l.fault("sampler: bulk header read failed")
	}

	want := uint32(l.nBlocks * l.nActive * 2)
	if count != want {
		return model.Capture{}, l.fault("sampler: bulk byte count mismatch (got=%d, want=%d)", count, want)
	}

	payload := make([]byte, want)
	_, err := io.ReadFull(l.rw, payload)
	if err != nil {
		return model.Capture{}, xerrors.Errorf("sampler: could not read bulk payload (%v): %w", err, errs.LinkFaultErr)
	}

	out := model.Capture{
		Blocks:      make([]model.Block, l.nBlocks),
		NumChannels: l.nActive,
	}
	off := 0
	for b := 0; b < l.nBlocks; b++ {
		blk := model.Block{
			Max: make([]uint8, l.nActive),
			Min: make([]uint8, l.nActive),
		}
		for ch := 0; ch < l.nActive; ch++ {
			blk.Max[ch] = payload[off]
			blk.Min[ch] = payload[off+1]
			off += 2
		}
		out.Blocks[b] = blk
	}
	return out, nil
}

// Configured reports the (nActive, nBlocks) negotiated by the last
// successful Prepare.
func (l *Link) Configured() (nActive, nBlocks int) {
	return l.nActive, l.nBlocks
}
