// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Discover connects to addr and returns the first valid content record
// received. It retries the connection at a fixed backoff until ctx is
// cancelled, since the remote content-identification service may not yet
// be listening when the orchestrator starts this task (§4.5, §4.10 WAIT_PEER).
func Discover(ctx context.Context, addr string) (model.ContentRecord, error) {
	const retry = 200 * time.Millisecond

	for {
		rec, err := tryDiscover(ctx, addr)
		if err == nil {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return model.ContentRecord{}, fmt.Errorf("content: discovery cancelled: %w", ctx.Err())
		case <-time.After(retry):
		}
	}
}

func tryDiscover(ctx context.Context, addr string) (model.ContentRecord, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return model.ContentRecord{}, err
	}
	defer conn.Close()

	var w recordWire
	if err := json.NewDecoder(conn).Decode(&w); err != nil {
		return model.ContentRecord{}, err
	}
	rec := fromWire(w)
	if rec.ContentID == "" {
		return model.ContentRecord{}, fmt.Errorf("content: empty contentId in discovered record")
	}
	return rec, nil
}
