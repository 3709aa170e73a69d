// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// ControlTimestamp (CT) anchors a timeline in wall-clock time: a
// Correlation plus the content-id it was issued for. Successive CTs form
// a monotone sequence by arrival; only the latest is authoritative.
type ControlTimestamp struct {
	ContentID   string
	Correlation Correlation
	TickRate    TickRate

	// Selector is the timeline selector this CT answers, echoed back so a
	// client juggling several subscriptions can tell them apart.
	Selector string
}

// NullCT is the "timeline unavailable" control timestamp.
func NullCT(contentID, selector string) ControlTimestamp {
	return ControlTimestamp{
		ContentID:   contentID,
		Correlation: NullCorrelation,
		Selector:    selector,
	}
}
