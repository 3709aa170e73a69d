// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bbc/dvbcss-synctiming/content"
	"github.com/bbc/dvbcss-synctiming/dispersion"
	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/model"
	"github.com/bbc/dvbcss-synctiming/sampler"
	"github.com/bbc/dvbcss-synctiming/timeline"
	"github.com/bbc/dvbcss-synctiming/translate"
	"github.com/bbc/dvbcss-synctiming/verdict"
	"github.com/bbc/dvbcss-synctiming/wallclock"
)

// Orchestrator drives one measurement run through the state machine of
// §4.10, coordinating the sampler link (C1/C2) with the three protocol
// service tasks (C3/C4/C5) and the analysis pipeline (C6-C11).
type Orchestrator struct {
	cfg  Config
	link *sampler.Link
	msg  *log.Logger

	mu    sync.Mutex
	state State
}

// New builds an Orchestrator for one run; link must already be open and
// idle.
func New(cfg Config, link *sampler.Link) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg.withDefaults(),
		link:  link,
		msg:   log.New(os.Stdout, "orchestrate: ", 0),
		state: Idle,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.msg.Printf("-> %s", s)
}

// Run executes the full measurement: arm the services, bracket a sample
// with clock-offset estimates, and analyse the result into a verdict.
// Cancelling ctx routes to Fault with errs.UserAbortErr.
func (o *Orchestrator) Run(ctx context.Context) (verdict.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)

	svc, err := o.arm(runCtx)
	if err != nil {
		cancel()
		return o.fail(err)
	}
	defer svc.teardown(cancel, o.msg)

	// stages that do not watch ctx themselves are checked at their ends.
	aborted := func() error {
		if runCtx.Err() != nil {
			return fmt.Errorf("orchestrate: run cancelled: %w", errs.UserAbortErr)
		}
		return nil
	}

	if err := o.waitPeer(runCtx, svc); err != nil {
		return o.fail(err)
	}
	if err := aborted(); err != nil {
		return o.fail(err)
	}

	pre, err := o.sync(svc)
	if err != nil {
		return o.fail(err)
	}

	capture, err := o.sample(runCtx)
	if err != nil {
		return o.fail(err)
	}

	post, full, err := o.upload(svc, capture)
	if err != nil {
		return o.fail(err)
	}
	if err := aborted(); err != nil {
		return o.fail(err)
	}

	report, err := o.analyse(pre, post, full, svc)
	if err != nil {
		return o.fail(err)
	}

	o.setState(Done)
	if !report.Pass && o.cfg.Alert != nil {
		o.cfg.Alert("synctiming: out of tolerance", fmt.Sprintf("%+v", report))
	}
	return report, nil
}

func (o *Orchestrator) fail(err error) (verdict.Report, error) {
	o.setState(Fault)
	if o.cfg.Alert != nil {
		o.cfg.Alert("synctiming: measurement fault", err.Error())
	}
	return verdict.Report{}, err
}

// services holds the live protocol-service handles for one run, whatever
// role produced them, plus the group that supervises their background
// tasks.
type services struct {
	grp  *errgroup.Group
	disp *dispersion.Recorder

	wcClient *wallclock.Client
	wcServer *wallclock.Server
	tsClient *timeline.Client
	tsServer *timeline.Server
}

func (s *services) timelineSource() translate.TimelineSource {
	if s.tsServer != nil {
		return s.tsServer
	}
	return s.tsClient
}

func (s *services) wallClock() translate.WallClock {
	if s.wcClient != nil {
		return s.wcClient
	}
	return translate.Identity{}
}

// teardown cancels the shared context, stopping every C3/C4/C5 task, and
// waits for them to exit, logging anything other than the cancellation
// itself (§5, Resource policy: each task releases its own resources
// before exiting).
func (s *services) teardown(cancel context.CancelFunc, msg *log.Logger) {
	cancel()
	if err := s.grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		msg.Printf("service task error during teardown: %+v", err)
	}
}

// arm launches the C3/C4/C5 service tasks for the configured role
// (§4.10, IDLE -> ARMING -> WAIT_PEER).
func (o *Orchestrator) arm(ctx context.Context) (*services, error) {
	o.setState(Arming)

	grp, gctx := errgroup.WithContext(ctx)
	svc := &services{grp: grp}

	switch o.cfg.Role {
	case RoleCSA:
		wcSrv, err := wallclock.Serve(gctx, o.cfg.WCBindAddr)
		if err != nil {
			return nil, protocolFault("wallclock server", err)
		}
		tsSrv, err := timeline.Serve(gctx, o.cfg.TSBindAddr)
		if err != nil {
			return nil, protocolFault("timeline server", err)
		}
		ciiSrv, err := content.Serve(gctx, o.cfg.CIIBindAddr, model.ContentRecord{
			ContentID: o.cfg.ContentID,
			WCUrl:     wcSrv.Addr().String(),
			TSUrl:     tsSrv.Addr().String(),
		})
		if err != nil {
			return nil, protocolFault("content server", err)
		}

		svc.wcServer, svc.tsServer = wcSrv, tsSrv
		svc.disp = dispersion.NewConstantZero()

		grp.Go(wcSrv.Run)
		grp.Go(tsSrv.Run)
		grp.Go(ciiSrv.Run)

	case RoleTV:
		svc.disp = dispersion.NewRecorder()
		svc.disp.Record(model.DispersionPoint{WallClockInstant: time.Now().UnixNano(), Dispersion: 1})

		wcCli, err := wallclock.Dial(o.cfg.WCAddr, 200*time.Millisecond, svc.disp.Record)
		if err != nil {
			return nil, protocolFault("wallclock client", err)
		}
		tsCli, err := timeline.Dial(o.cfg.TSAddr, o.cfg.ContentID, o.cfg.Selector, o.cfg.TickRate)
		if err != nil {
			return nil, protocolFault("timeline client", err)
		}

		svc.wcClient, svc.tsClient = wcCli, tsCli

		grp.Go(func() error { return wcCli.Run(gctx) })
		grp.Go(func() error { return tsCli.Run(gctx) })
		if o.cfg.CIIAddr != "" {
			grp.Go(func() error {
				rec, err := content.Discover(gctx, o.cfg.CIIAddr)
				if err != nil {
					return err
				}
				if !rec.MatchesStem(o.cfg.ContentID) {
					o.msg.Printf("discovered content-id %q does not match %q", rec.ContentID, o.cfg.ContentID)
				}
				return nil
			})
		}
	}

	return svc, nil
}

// waitPeer blocks for the peer-confirmation step of §4.10: an operator
// prompt for RoleCSA, or a dispersion-ceiling wait for RoleTV.
func (o *Orchestrator) waitPeer(ctx context.Context, svc *services) error {
	o.setState(WaitPeer)

	if o.cfg.Role == RoleCSA {
		if o.cfg.Confirm == nil {
			return nil
		}
		done := make(chan error, 1)
		go func() { done <- o.cfg.Confirm() }()
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("orchestrate: operator did not confirm: %w: %w", err, errs.UserAbortErr)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("orchestrate: cancelled waiting for operator: %w", errs.UserAbortErr)
		}
	}

	deadline := time.Now().Add(o.cfg.WaitPeerTimeout)
	var lastDisp float64
	for {
		now := time.Now()
		cur := svc.disp.At(now.UnixNano())
		if cur <= o.cfg.MaxDispersion.Seconds() {
			return nil
		}
		if now.After(deadline) {
			return fmt.Errorf(
				"orchestrate: wall-clock dispersion %.1fms still above ceiling %.1fms after %s: %w",
				cur*1000, o.cfg.MaxDispersion.Seconds()*1000, o.cfg.WaitPeerTimeout, errs.DispersionCeilingErr)
		}
		if lastDisp != 0 {
			rate := (cur - lastDisp) / 0.5 // per second, over the poll interval below
			o.msg.Printf("dispersion=%.1fms ceiling=%.1fms trend=%.2fms/s",
				cur*1000, o.cfg.MaxDispersion.Seconds()*1000, rate*1000)
		}
		lastDisp = cur

		select {
		case <-ctx.Done():
			return fmt.Errorf("orchestrate: cancelled waiting for dispersion: %w", errs.UserAbortErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// sync configures the sampler's active channels and takes the
// pre-sample clock-offset estimate (§4.10, WAIT_PEER -> SYNCING). In
// RoleCSA, this is also when the orchestrator's own content starts: the
// tool knows its own timeline-to-wall-clock correlation because it is
// the one playing the test sequence, and publishes it to the timeline
// server it is running for the CSA under test.
func (o *Orchestrator) sync(svc *services) (model.OffsetEstimate, error) {
	o.setState(Syncing)

	if svc.tsServer != nil {
		svc.tsServer.SetCorrelation(o.cfg.ContentID, o.cfg.TickRate, model.Correlation{
			RefClockInstant: time.Now().UnixNano(),
			TimelineTick:    o.cfg.Anchor.FirstFrameTick,
			Speed:           1,
		})
	}

	for _, ch := range o.channels() {
		if err := o.link.EnableChannel(ch.SamplerIndex); err != nil {
			return model.OffsetEstimate{}, err
		}
	}
	if _, _, err := o.link.Prepare(); err != nil {
		return model.OffsetEstimate{}, err
	}

	est := sampler.NewEstimator(o.link)
	return est.Estimate()
}

// sample issues the blocking 'S' opcode, aborting the link if ctx is
// cancelled mid-capture (§4.10, §5 Cancellation).
func (o *Orchestrator) sample(ctx context.Context) (model.Capture, error) {
	o.setState(Sampling)

	type result struct {
		start, end int64
		nBlocks    int
		err        error
	}
	done := make(chan result, 1)
	go func() {
		start, end, n, err := o.link.Sample()
		done <- result{start, end, n, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return model.Capture{}, r.err
		}
		return model.Capture{StartDeviceMicros: r.start, EndDeviceMicros: r.end}, nil
	case <-ctx.Done():
		_ = o.link.Abort()
		return model.Capture{}, fmt.Errorf("orchestrate: sampling aborted: %w", errs.UserAbortErr)
	case <-time.After(o.cfg.SampleTimeout):
		_ = o.link.Abort()
		return model.Capture{}, fmt.Errorf("orchestrate: sampling timed out after %s: %w", o.cfg.SampleTimeout, errs.LinkFaultErr)
	}
}

// upload takes the post-sample estimate and reads back the buffer
// (§4.10, SAMPLING -> UPLOADING -> ANALYSING).
func (o *Orchestrator) upload(svc *services, partial model.Capture) (model.OffsetEstimate, model.Capture, error) {
	o.setState(Uploading)

	est := sampler.NewEstimator(o.link)
	post, err := est.Estimate()
	if err != nil {
		return model.OffsetEstimate{}, model.Capture{}, err
	}

	capture, err := o.link.Bulk()
	if err != nil {
		return model.OffsetEstimate{}, model.Capture{}, err
	}
	capture.StartDeviceMicros = partial.StartDeviceMicros
	capture.EndDeviceMicros = partial.EndDeviceMicros

	svc.disp.Freeze()
	return post, capture, nil
}

func (o *Orchestrator) channels() []Channel {
	var out []Channel
	out = append(out, o.cfg.Light...)
	out = append(out, o.cfg.Audio...)
	sort.Slice(out, func(i, j int) bool { return out[i].SamplerIndex < out[j].SamplerIndex })
	return out
}

func protocolFault(what string, err error) error {
	return fmt.Errorf("orchestrate: could not start %s: %v: %w", what, err, errs.ProtocolFaultErr)
}
