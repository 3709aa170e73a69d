// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/bbc/dvbcss-synctiming/model"
)

func TestServerClientDeliversCorrelation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := Serve(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not start server: %+v", err)
	}
	go srv.Run()

	rate := model.TickRate{Num: 25, Den: 1}
	srv.SetCorrelation("content-1", rate, model.Correlation{
		RefClockInstant: 1_000_000_000,
		TimelineTick:    0,
		Speed:           1,
	})

	cli, err := Dial(srv.Addr().String(), "content-1", "urn:selector", rate)
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}

	cliCtx, cliCancel := context.WithTimeout(ctx, 2*time.Second)
	defer cliCancel()

	done := make(chan error, 1)
	go func() { done <- cli.Run(cliCtx) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ct, ok := cli.Latest(); ok {
			if ct.ContentID != "content-1" {
				t.Fatalf("invalid contentId: got=%q", ct.ContentID)
			}
			if ct.Correlation.Null {
				t.Fatalf("expected a non-null correlation")
			}
			cliCancel()
			<-done
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client never received a control timestamp")
}

func TestServerBroadcastsChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := Serve(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not start server: %+v", err)
	}
	go srv.Run()

	rate := model.TickRate{Num: 25, Den: 1}
	cli, err := Dial(srv.Addr().String(), "content-1", "urn:selector", rate)
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}

	cliCtx, cliCancel := context.WithTimeout(ctx, 2*time.Second)
	defer cliCancel()
	go cli.Run(cliCtx)

	// first delivery is the null CT, since nothing has been set yet.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := cli.Latest(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	srv.SetCorrelation("content-1", rate, model.Correlation{
		RefClockInstant: 5_000_000_000,
		TimelineTick:    125,
		Speed:           1,
	})

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ct, ok := cli.Latest(); ok && !ct.Correlation.Null && ct.Correlation.TimelineTick == 125 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client never observed the broadcast correlation change")
}
