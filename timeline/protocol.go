// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timeline implements the timeline synchronisation protocol
// (§4.4, §6): a persistent JSON connection over which a client subscribes
// to a timeline selector and receives a stream of control timestamps
// mapping wall-clock time to media-timeline ticks.
package timeline

import "github.com/bbc/dvbcss-synctiming/model"

type tickRateWire struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// helloWire is the one message a client sends, once, on connect.
type helloWire struct {
	ContentIDStem    string       `json:"contentIdStem"`
	TimelineSelector string       `json:"timelineSelector"`
	TickRate         tickRateWire `json:"tickRate"`
}

// ctWire is the control-timestamp message, sent by the server whenever
// the authoritative correlation, content-id or tick-rate changes, and on
// client connect. A nil ContentTime/WallClockTime pair is the "null CT"
// meaning "timeline unavailable".
type ctWire struct {
	ContentID               string       `json:"contentId"`
	ContentIDStatus         string       `json:"contentIdStatus"`
	PresentationStatus      string       `json:"presentationStatus"`
	TimelineSelector        string       `json:"timelineSelector"`
	TickRate                tickRateWire `json:"tickRate"`
	ContentTime             *int64       `json:"contentTime"`
	WallClockTime           *int64       `json:"wallClockTime"`
	TimelineSpeedMultiplier *float64     `json:"timelineSpeedMultiplier"`
}

func toWire(ct model.ControlTimestamp) ctWire {
	w := ctWire{
		ContentID:          ct.ContentID,
		ContentIDStatus:    "ok",
		PresentationStatus: "okay",
		TimelineSelector:   ct.Selector,
		TickRate:           tickRateWire{ct.TickRate.Num, ct.TickRate.Den},
	}
	if ct.Correlation.Null {
		return w
	}
	ctime := ct.Correlation.TimelineTick
	wctime := ct.Correlation.RefClockInstant
	speed := ct.Correlation.Speed
	w.ContentTime = &ctime
	w.WallClockTime = &wctime
	w.TimelineSpeedMultiplier = &speed
	return w
}

func fromWire(w ctWire) model.ControlTimestamp {
	ct := model.ControlTimestamp{
		ContentID: w.ContentID,
		Selector:  w.TimelineSelector,
		TickRate:  model.TickRate{Num: w.TickRate.Num, Den: w.TickRate.Den},
	}
	if w.ContentTime == nil || w.WallClockTime == nil {
		ct.Correlation = model.NullCorrelation
		return ct
	}
	speed := 1.0
	if w.TimelineSpeedMultiplier != nil {
		speed = *w.TimelineSpeedMultiplier
	}
	ct.Correlation = model.Correlation{
		RefClockInstant: *w.WallClockTime,
		TimelineTick:    *w.ContentTime,
		Speed:           speed,
	}
	return ct
}
