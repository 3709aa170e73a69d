// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wallclock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
)

// Server answers wall-clock requests from this host's wall clock
// (time.Now().UnixNano(), not a monotonic reading), acting as the
// reference when this host is measuring a companion-screen app (§4.3,
// server role). It reports no dispersion outward.
type Server struct {
	conn *net.UDPConn
	msg  *log.Logger
	now  func() int64 // nanoseconds
}

// Serve listens on addr and serves wall-clock requests until ctx is
// cancelled, at which point the socket is closed and any in-flight
// response is dropped (§4.3, §5 Cancellation).
func Serve(ctx context.Context, addr string) (*Server, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("wallclock: could not resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("wallclock: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		conn: conn,
		msg:  log.New(os.Stdout, "wallclock-srv: ", 0),
		now:  nowNanos,
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	return srv, nil
}

// Run handles requests until the socket is closed (by Serve's context
// being cancelled) or a fatal read error occurs.
func (s *Server) Run() error {
	buf := make([]byte, PacketSize)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		requestRx := s.now()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("wallclock: read failed: %w: %w", err, errs.ProtocolFaultErr)
		}

		req, err := Unmarshal(buf[:n])
		if err != nil {
			s.msg.Printf("dropping malformed request from %v: %+v", raddr, err)
			continue
		}

		resp := Packet{
			Version:   req.Version,
			Type:      TypeResponse,
			Originate: req.Transmit,
			Receive:   requestRx,
		}
		resp.Transmit = s.now()

		_, err = s.conn.WriteToUDP(resp.Marshal(), raddr)
		if err != nil {
			s.msg.Printf("could not reply to %v: %+v", raddr, err)
		}
	}
}

// Addr returns the server's bound local address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

func nowNanos() int64 { return time.Now().UnixNano() }

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
