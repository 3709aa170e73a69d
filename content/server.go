// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Server advertises a single, static content record to every client that
// connects for the lifetime of the measurement run (§4.5, server role).
type Server struct {
	ln     net.Listener
	msg    *log.Logger
	record model.ContentRecord
}

// Serve listens on addr and advertises record to every connecting client
// until ctx is cancelled.
func Serve(ctx context.Context, addr string, record model.ContentRecord) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("content: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		ln:     ln,
		msg:    log.New(os.Stdout, "content-srv: ", 0),
		record: record,
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	return srv, nil
}

// Addr returns the server's bound local address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Run accepts connections until the listener is closed.
func (s *Server) Run() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("content: accept failed: %w", err)
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(toWire(s.record)); err != nil {
		s.msg.Printf("could not send content record to %v: %+v", conn.RemoteAddr(), err)
	}
}
