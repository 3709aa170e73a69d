// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Server holds the single authoritative correlation for a content-id and
// tick-rate, and fans out a control-timestamp whenever it changes, or a
// new client connects (§4.4, server role).
type Server struct {
	ln  net.Listener
	msg *log.Logger

	mu          sync.Mutex
	contentID   string
	tickRate    model.TickRate
	correlation model.Correlation
	subs        map[chan model.ControlTimestamp]string // chan -> selector
}

// Serve listens on addr. Accepted connections are served until ctx is
// cancelled, at which point the listener is closed (§5, Cancellation).
func Serve(ctx context.Context, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("timeline: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		ln:          ln,
		msg:         log.New(os.Stdout, "timeline-srv: ", 0),
		correlation: model.NullCorrelation,
		subs:        make(map[chan model.ControlTimestamp]string),
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
			if isClosedListener(err) {
				return nil
			}
			return fmt.Errorf("timeline: accept failed: %w", err)
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var hello helloWire
	if err := json.NewDecoder(conn).Decode(&hello); err != nil {
		s.msg.Printf("could not decode hello from %v: %+v", conn.RemoteAddr(), err)
		return
	}

	ch := make(chan model.ControlTimestamp, 4)
	s.mu.Lock()
	s.subs[ch] = hello.TimelineSelector
	ch <- s.currentCT(hello.TimelineSelector)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	enc := json.NewEncoder(conn)
	for ct := range ch {
		if err := enc.Encode(toWire(ct)); err != nil {
			s.msg.Printf("could not send CT to %v: %+v", conn.RemoteAddr(), err)
			return
		}
	}
}

// currentCT builds the CT for selector under the held lock.
func (s *Server) currentCT(selector string) model.ControlTimestamp {
	if s.correlation.Null {
		return model.NullCT(s.contentID, selector)
	}
	return model.ControlTimestamp{
		ContentID:   s.contentID,
		Selector:    selector,
		TickRate:    s.tickRate,
		Correlation: s.correlation,
	}
}

// Latest returns the server's own authoritative control timestamp, for
// use as a translate.TimelineSource by a local caller that owns this
// Server (the server role's own time translator needs the correlation it
// just set, not a subscription stream).
func (s *Server) Latest() (model.ControlTimestamp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCT(""), !s.correlation.Null
}

// SetCorrelation updates the authoritative state and pushes a new CT to
// every connected client (§4.4: "whenever the ... correlation, content-id
// or tick-rate changes").
func (s *Server) SetCorrelation(contentID string, rate model.TickRate, corr model.Correlation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contentID, s.tickRate, s.correlation = contentID, rate, corr
	for ch, selector := range s.subs {
		select {
		case ch <- s.currentCT(selector):
		default:
			// slow subscriber with a full buffer: this update is dropped for
			// it; it receives the state again only on the next change.
		}
	}
}

func isClosedListener(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
