// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wallclock

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bbc/dvbcss-synctiming/model"
)

// DispersionFunc receives a dispersion update: wall-clock instant
// (nanoseconds) and the dispersion bound (seconds) at that instant.
type DispersionFunc func(model.DispersionPoint)

// Client periodically exchanges wall-clock packets with a remote server
// and keeps the (remote-local) offset measured by the most recent
// successful exchange, reporting each exchange's dispersion to a
// DispersionFunc (§4.3, §4.6, client role). Offsets from earlier
// exchanges are not filtered or combined.
type Client struct {
	conn    *net.UDPConn
	msg     *log.Logger
	period  time.Duration
	onDisp  DispersionFunc
	now     func() int64

	mu      sync.RWMutex
	offset  float64 // seconds, remote-local
	lastErr error
}

// Dial resolves and "connects" a UDP socket to the remote wall-clock
// server at addr.
func Dial(addr string, period time.Duration, onDisp DispersionFunc) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("wallclock: could not resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("wallclock: could not dial %q: %w", addr, err)
	}

	if onDisp == nil {
		onDisp = func(model.DispersionPoint) {}
	}

	return &Client{
		conn:   conn,
		msg:    log.New(os.Stdout, "wallclock-cli: ", 0),
		period: period,
		onDisp: onDisp,
		now:    nowNanos,
	}, nil
}

// Run exchanges packets every period until ctx is cancelled, at which
// point the socket is closed (§5, Cancellation).
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	tick := time.NewTicker(c.period)
	defer tick.Stop()

	// an immediate first exchange, so dispersion converges without
	// waiting a full period.
	c.exchange()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			c.exchange()
		}
	}
}

func (c *Client) exchange() {
	req := Packet{Type: TypeRequest, Originate: c.now()}
	req.Transmit = c.now()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.period))
	_, err := c.conn.Write(req.Marshal())
	if err != nil {
		c.setErr(err)
		return
	}

	buf := make([]byte, PacketSize)
	n, err := c.conn.Read(buf)
	t1 := c.now()
	if err != nil {
		c.setErr(err)
		return
	}

	resp, err := Unmarshal(buf[:n])
	if err != nil {
		c.setErr(err)
		return
	}

	// standard two-timestamp-pair offset/delay computation.
	offset := float64((resp.Receive-req.Originate)+(resp.Transmit-t1)) / 2 / 1e9
	delay := float64((t1-req.Originate)-(resp.Transmit-resp.Receive)) / 1e9
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	c.offset = offset
	c.lastErr = nil
	c.mu.Unlock()

	c.onDisp(model.DispersionPoint{
		WallClockInstant: t1,
		Dispersion:       delay / 2,
	})
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.msg.Printf("exchange failed: %+v", err)
}

// Offset returns the (remote-local) offset from the most recent
// successful exchange, in seconds.
func (c *Client) Offset() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// SyncedNow maps a local wall-clock instant (nanoseconds) to the
// synchronised wall-clock (§4.9 step 2).
func (c *Client) SyncedNow(localNanos int64) int64 {
	return localNanos + int64(c.Offset()*1e9)
}

// Err returns the error from the most recent failed exchange, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
