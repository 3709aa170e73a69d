// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package content implements the content-identification service (§4.5,
// §6): a persistent JSON connection advertising or discovering the
// {contentId, wcUrl, tsUrl} record that establishes the wall-clock and
// timeline endpoints for a measurement run.
package content

import (
	"github.com/bbc/dvbcss-synctiming/model"
)

type recordWire struct {
	ContentID string `json:"contentId"`
	WCUrl     string `json:"wcUrl"`
	TSUrl     string `json:"tsUrl"`
}

func toWire(r model.ContentRecord) recordWire {
	return recordWire{ContentID: r.ContentID, WCUrl: r.WCUrl, TSUrl: r.TSUrl}
}

func fromWire(w recordWire) model.ContentRecord {
	return model.ContentRecord{ContentID: w.ContentID, WCUrl: w.WCUrl, TSUrl: w.TSUrl}
}
