// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
)

// Client connects once to a timeline server, sends the one-time hello and
// then holds the most recently received control timestamp (§4.4, client
// role).
type Client struct {
	conn net.Conn
	msg  *log.Logger

	mu     sync.RWMutex
	latest model.ControlTimestamp
	have   bool
	err    error
}

// Dial connects to addr and sends the hello for contentIDStem and
// selector, declaring the receiver's tick rate.
func Dial(addr, contentIDStem, selector string, rate model.TickRate) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("timeline: could not dial %q: %w", addr, err)
	}

	hello := helloWire{
		ContentIDStem:    contentIDStem,
		TimelineSelector: selector,
		TickRate:         tickRateWire{rate.Num, rate.Den},
	}
	if err := json.NewEncoder(conn).Encode(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("timeline: could not send hello: %w", err)
	}

	return &Client{
		conn: conn,
		msg:  log.New(os.Stdout, "timeline-cli: ", 0),
	}, nil
}

// Run decodes control timestamps until ctx is cancelled. A stream that
// ends on its own, without cancellation, is a protocol fault (§7).
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	dec := json.NewDecoder(c.conn)
	for {
		var w ctWire
		if err := dec.Decode(&w); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wrapped := fmt.Errorf("timeline: stream ended: %v: %w", err, errs.ProtocolFaultErr)
			c.setErr(wrapped)
			return wrapped
		}

		ct := fromWire(w)
		c.mu.Lock()
		c.latest = ct
		c.have = true
		c.mu.Unlock()
	}
}

// Latest returns the most recently received control timestamp and
// whether one has been received yet.
func (c *Client) Latest() (model.ControlTimestamp, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.have
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.msg.Printf("%+v", err)
}

// Err returns the error that ended Run, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
