// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command synctiming-tv measures a TV: it dials the device under test's
// wall-clock and timeline services as a client, waits for its wall-clock
// dispersion to settle, then samples and reports how accurately the
// light/audio pulses it observes line up with the device's own
// timeline-to-wall-clock correlation (§4.10, role=client).
package main // import "github.com/bbc/dvbcss-synctiming/cmd/synctiming-tv"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

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
		serialPath  = flag.String("serial", "/dev/ttyACM0", "sampler USB virtual COM port")
		ciiAddr     = flag.String("ciiUrl", "", "content-identification service to confirm against (optional)")
		light0      = flag.String("light0", "", "enable a light channel on sampler index 0, with this metadata.json")
		light1      = flag.String("light1", "", "enable a light channel on sampler index 1, with this metadata.json")
		audio0      = flag.String("audio0", "", "enable an audio channel on sampler index 2, with this metadata.json")
		audio1      = flag.String("audio1", "", "enable an audio channel on sampler index 3, with this metadata.json")
		toleranceMs = flag.Float64("toleranceTest", 20, "pass/fail tolerance, in milliseconds")
		measureSecs = flag.Int("measureSecs", 15, "requested measurement duration in seconds (informational; the sampler's own buffer bounds the actual capture)")
		maxDispMs   = flag.Float64("maxDispersion", 50, "wall-clock dispersion ceiling, in milliseconds, required before sampling may begin")
		printMode   = flag.Bool("printMode", true, "print a per-pulse summary table to stdout")
		csvOut      = flag.String("csvOut", "", "write per-pulse residuals to this CSV file")
	)

	flag.Parse()

	log.SetPrefix("synctiming-tv: ")
	log.SetFlags(0)
	if version, sum := synctiming.Version(); version != "" {
		log.Printf("%s (%s)", version, sum)
	}

	args := flag.Args()
	if len(args) != 7 {
		log.Fatalf("usage: synctiming-tv [options] content-id selector tick-num tick-den first-frame-tick wc-url ts-url")
	}

	cfg, err := parseArgs(args, *light0, *light1, *audio0, *audio1)
	if err != nil {
		log.Fatalf("could not parse arguments: %+v", err)
	}
	cfg.CIIAddr = *ciiAddr
	cfg.ToleranceMs = *toleranceMs
	cfg.MeasureSecs = *measureSecs
	cfg.MaxDispersion = time.Duration(*maxDispMs * float64(time.Millisecond))
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

// parseArgs builds the orchestrator Config for the TV role from the
// shared positional arguments plus the role-specific wc-url/ts-url pair
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

	cfg := orchestrate.Config{
		Role:      orchestrate.RoleTV,
		ContentID: args[0],
		Selector:  args[1],
		TickRate:  model.TickRate{Num: tickNum, Den: tickDen},
		Anchor:    model.Anchor{FirstFrameTick: firstFrame},
		WCAddr:    args[5],
		TSAddr:    args[6],
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
	msg.SetHeader("Subject", fmt.Sprintf("[synctiming-tv] %s", subject))
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
