// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wallclock implements the wall-clock synchronisation protocol
// (§4.3, §6): a datagram-oriented request/response exchange with
// nanosecond-precision signed timestamps, used either to serve a
// companion-screen app's clock requests (server role) or to synchronise
// the host to a TV's wall clock (client role).
package wallclock

import (
	"encoding/binary"
	"fmt"
)

// PacketSize is the fixed wire size of a wall-clock packet (§6):
// version(1) + type(1) + precision(1) + maxFreqError(4) + originate(8) +
// receive(8) + transmit(8).
const PacketSize = 1 + 1 + 1 + 4 + 8 + 8 + 8

// Type identifies whether a packet is a request or a response.
type Type uint8

const (
	TypeRequest  Type = 0
	TypeResponse Type = 1
)

// Packet is one wall-clock protocol frame (§6). Timestamps are signed
// nanoseconds in an implementation-defined epoch consistent within one
// exchange.
type Packet struct {
	Version      uint8
	Type         Type
	Precision    int8
	MaxFreqError uint32
	Originate    int64
	Receive      int64
	Transmit     int64
}

// Marshal encodes p in network byte order.
func (p Packet) Marshal() []byte {
	buf := make([]byte, PacketSize)
	buf[0] = p.Version
	buf[1] = byte(p.Type)
	buf[2] = byte(p.Precision)
	binary.BigEndian.PutUint32(buf[3:7], p.MaxFreqError)
	binary.BigEndian.PutUint64(buf[7:15], uint64(p.Originate))
	binary.BigEndian.PutUint64(buf[15:23], uint64(p.Receive))
	binary.BigEndian.PutUint64(buf[23:31], uint64(p.Transmit))
	return buf
}

// Unmarshal decodes a packet from buf.
func Unmarshal(buf []byte) (Packet, error) {
	if len(buf) < PacketSize {
		return Packet{}, fmt.Errorf("wallclock: short packet (got=%d, want=%d)", len(buf), PacketSize)
	}
	return Packet{
		Version:      buf[0],
		Type:         Type(buf[1]),
		Precision:    int8(buf[2]),
		MaxFreqError: binary.BigEndian.Uint32(buf[3:7]),
		Originate:    int64(binary.BigEndian.Uint64(buf[7:15])),
		Receive:      int64(binary.BigEndian.Uint64(buf[15:23])),
		Transmit:     int64(binary.BigEndian.Uint64(buf[23:31])),
	}, nil
}
