// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command synctiming-csa measures a companion-screen app: it serves the
// wall-clock, timeline and content-identification protocols itself,
// driving the known correlation of the test content it is "playing", and
// reports how accurately the light/audio pulses it samples line up with
// that correlation (§4.10, role=server).
package main // import "github.com/bbc/dvbcss-synctiming/cmd/synctiming-csa"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	mail "gopkg.in/gomail.v2"

	synctiming "github.com/bbc/dvbcss-synctiming"
	"github.com/bbc/dvbcss-synctiming/internal/errs"
	"github.com/bbc/dvbcss-synctiming/internal/metaio"
	"github.com/bbc/dvbcss-synctiming/model"
	"github.com/bbc/dvbcss-synctiming/orchestrate"
	"github.com/bbc/dvbcss-synctiming/sampler"
	"github.com/bbc/dvbcss-synctiming/verdict"
)

func main() {
	var (
		serialPath = flag.String("serial", "/dev/ttyACM0", "sampler USB virtual COM port")
		light0     = flag.String("light0", "", "enable a light channel on sampler index 0, with this metadata.json")
		light1     = flag.String("light1", "", "enable a light channel on sampler index 1, with this metadata.json")
		audio0     = flag.String("audio0", "", "enable an audio channel on sampler index 2, with this metadata.json")
		audio1     = flag.String("audio1", "", "enable an audio channel on sampler index 3, with this metadata.json")
		toleranceMs = flag.Float64("toleranceTest", 20, "pass/fail tolerance, in milliseconds")
		measureSecs = flag.Int("measureSecs", 15, "requested measurement duration in seconds (informational; the sampler's own buffer bounds the actual capture)")
		printMode   = flag.Bool("printMode", true, "print a per-pulse summary table to stdout")
		csvOut      = flag.String("csvOut", "", "write per-pulse residuals to this CSV file")
	)

	flag.Parse()

	log.SetPrefix("synctiming-csa: ")
	log.SetFlags(0)
	if version, sum := synctiming.Version(); version != "" {
		log.Printf("%s (%s)", version, sum)
	}

	args := flag.Args()
	if len(args) != 6 {
		log.Fatalf("usage: synctiming-csa [options] content-id selector tick-num tick-den first-frame-tick bind-addr")
	}

	cfg, err := parseArgs(args, *light0, *light1, *audio0, *audio1)
	if err != nil {
		log.Fatalf("could not parse arguments: %+v", err)
	}
	cfg.ToleranceMs = *toleranceMs
	cfg.MeasureSecs = *measureSecs
	cfg.Confirm = confirmPeer
	cfg.Alert = mailAlert

	link, err := sampler.Open(*serialPath)
	if err != nil {
		log.Fatalf("could not open sampler link %q: %+v", *serialPath, err)
	}
	defer link.Close()

	o := orchestrate.New(cfg, link)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)
	go func() {
		<-stop
		log.Printf("interrupted: cancelling measurement...")
		cancel()
	}()

	report, err := o.Run(ctx)
	if err != nil {
		log.Printf("measurement did not complete: %+v", err)
	}

	if *printMode && err == nil {
		if werr := verdict.WriteTable(os.Stdout, report, cfg.TickRate); werr != nil {
			log.Printf("could not print verdict table: %+v", werr)
		}
	}
	if *csvOut != "" && err == nil {
		if werr := verdict.WriteCSV(*csvOut, report, cfg.TickRate); werr != nil {
			log.Printf("could not write %q: %+v", *csvOut, werr)
		}
	}

	os.Exit(exitCode(report, err))
}

// parseArgs builds the orchestrator Config for the CSA role from the
// shared positional arguments plus the one role-specific bind address
// (§6 CLI surface); --light0/--light1 and --audio0/--audio1 each enable
// their sampler index independently, so both of a pair may be given to
// measure two light (or two audio) pins simultaneously, matching the
// original tool's per-pin measurement loop.
func parseArgs(args []string, light0, light1, audio0, audio1 string) (orchestrate.Config, error) {
	tickNum, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return orchestrate.Config{}, fmt.Errorf("invalid tick-rate numerator %q: %w", args[2], err)
	}
	tickDen, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return orchestrate.Config{}, fmt.Errorf("invalid tick-rate denominator %q: %w", args[3], err)
	}
	firstFrame, err := strconv.ParseInt(args[4], 10, 64)
	if err != nil {
		return orchestrate.Config{}, fmt.Errorf("invalid first-frame tick %q: %w", args[4], err)
	}

	contentID := args[0]
	if contentID == "" {
		contentID = uuid.NewString()
	}

	cfg := orchestrate.Config{
		Role:      orchestrate.RoleCSA,
		ContentID: contentID,
		Selector:  args[1],
		TickRate:  model.TickRate{Num: tickNum, Den: tickDen},
		Anchor:    model.Anchor{FirstFrameTick: firstFrame},
	}

	light, err := channelFrom(light0, light1, 0, 1, model.Flash)
	if err != nil {
		return orchestrate.Config{}, err
	}
	cfg.Light = light

	audio, err := channelFrom(audio0, audio1, 2, 3, model.Beep)
	if err != nil {
		return orchestrate.Config{}, err
	}
	cfg.Audio = audio

	bindHost, bindPort, err := splitHostPort(args[5])
	if err != nil {
		return orchestrate.Config{}, err
	}
	cfg.WCBindAddr = net.JoinHostPort(bindHost, strconv.Itoa(bindPort))
	cfg.TSBindAddr = net.JoinHostPort(bindHost, strconv.Itoa(bindPort+1))
	cfg.CIIBindAddr = net.JoinHostPort(bindHost, strconv.Itoa(bindPort+2))

	return cfg, nil
}

// channelFrom builds one Channel per non-empty metadata path, letting
// both sampler indices of a modality be enabled at once.
func channelFrom(pathIdx0, pathIdx1 string, idx0, idx1 int, kind model.Kind) ([]orchestrate.Channel, error) {
	var out []orchestrate.Channel
	if pathIdx0 != "" {
		ch, err := channelOf(idx0, kind, pathIdx0)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	if pathIdx1 != "" {
		ch, err := channelOf(idx1, kind, pathIdx1)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func channelOf(samplerIdx int, kind model.Kind, metadataPath string) (orchestrate.Channel, error) {
	meta, err := metaio.Read(metadataPath)
	if err != nil {
		return orchestrate.Channel{}, fmt.Errorf("could not read %s metadata: %w", kind, err)
	}
	return orchestrate.Channel{SamplerIndex: samplerIdx, ID: samplerIdx, Kind: kind, Metadata: meta}, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid bind port in %q: %w", addr, err)
	}
	return host, port, nil
}

// confirmPeer prompts the operator at the WAIT_PEER -> SYNCING transition
// (§4.10): the CSA under test is expected to already be connected to the
// services this tool is serving.
func confirmPeer() error {
	state := liner.NewLiner()
	defer state.Close()
	state.SetCtrlCAborts(true)

	_, err := state.Prompt("press enter once the companion-screen app is connected and playing the test content> ")
	return err
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

// mailAlert sends an out-of-tolerance or fault notification by mail,
// mirroring cmd/eda-ctl's alertMail; it is a silent no-op when the
// MAIL_* environment variables are not configured.
func mailAlert(subject, body string) {
	if alertMailUsr == "" || alertMailPwd == "" || alertMailSrv == "" || alertMailPort == 0 || len(alertMailTgts) == 0 {
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[synctiming-csa] %s", subject))
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	if err := dial.DialAndSend(msg); err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

// exitCode maps a run's outcome to the exit codes of §6: 0 pass, 1 fail
// verdict, 2 link or protocol fault, 3 insufficient observations,
// 4 operator abort.
func exitCode(report verdict.Report, err error) int {
	if err == nil {
		if report.Pass {
			return 0
		}
		return 1
	}
	kind, ok := errs.KindOf(err)
	if !ok {
		return 2
	}
	switch kind {
	case errs.InsufficientObservations:
		return 3
	case errs.UserAbort:
		return 4
	default:
		return 2
	}
}
