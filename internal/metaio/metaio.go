// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metaio reads the expected-pulse metadata JSON file (§6) that
// accompanies the test video: a read-only input to the analysis stage,
// produced by the (out-of-scope) test-sequence generator.
package metaio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bbc/dvbcss-synctiming/model"
)

// Read parses the metadata file at path.
func Read(path string) (model.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Metadata{}, fmt.Errorf("metaio: could not open %q: %w", path, err)
	}
	defer f.Close()

	var m model.Metadata
	err = json.NewDecoder(f).Decode(&m)
	if err != nil {
		return model.Metadata{}, fmt.Errorf("metaio: could not decode %q: %w", path, err)
	}

	if m.PatternWindowLength <= 0 {
		return model.Metadata{}, fmt.Errorf("metaio: %q: invalid patternWindowLength=%d", path, m.PatternWindowLength)
	}
	if len(m.EventCentreTimes) == 0 {
		return model.Metadata{}, fmt.Errorf("metaio: %q: no event centre times", path)
	}

	return m, nil
}
