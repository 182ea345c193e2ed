// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package mockrobotd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ParseFixture decodes a fixture document. Fixtures are JSON with
// comments and trailing commas allowed, shaped like a Snapshot:
//
//	{
//	  // the motor board from the bench rig
//	  "boards": [
//	    {"category": "motor", "serial": "SR0ABC",
//	     "status": {"m0": "brake", "m1": "coast"}},
//	  ],
//	}
func ParseFixture(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(jsonc.ToJSON(data), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("parsing fixture: %w", err)
	}
	for i, state := range snapshot.Boards {
		if state.Category == "" || state.Serial == "" {
			return Snapshot{}, fmt.Errorf("fixture board %d: category and serial are required", i)
		}
	}
	return snapshot, nil
}

// LoadFixture reads the fixture file at path and restores it onto the
// daemon.
func (d *Daemon) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	snapshot, err := ParseFixture(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return d.Restore(snapshot)
}
