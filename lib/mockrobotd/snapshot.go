// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package mockrobotd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourcebots/robot-api/lib/codec"
	"github.com/sourcebots/robot-api/lib/connection"
)

// Snapshot is the saved state of every board on a Daemon. The same
// shape is used for JSONC fixture files.
type Snapshot struct {
	Boards []BoardState `json:"boards"`
}

// BoardState is one board's entry in a Snapshot.
type BoardState struct {
	Category string             `json:"category"`
	Serial   string             `json:"serial"`
	Greeting connection.Message `json:"greeting,omitempty"`
	Status   connection.Message `json:"status,omitempty"`
}

// Snapshot captures the current state of every board.
func (d *Daemon) Snapshot() Snapshot {
	var snapshot Snapshot
	for _, board := range d.Boards() {
		snapshot.Boards = append(snapshot.Boards, BoardState{
			Category: board.category,
			Serial:   board.serial,
			Greeting: board.greeting,
			Status:   board.Status(),
		})
	}
	return snapshot
}

// Restore applies a snapshot: boards that already exist take the saved
// status, missing boards are added with the saved greeting and status.
// Boards not named in the snapshot are left alone.
func (d *Daemon) Restore(snapshot Snapshot) error {
	for _, state := range snapshot.Boards {
		if board, ok := d.Board(state.Category, state.Serial); ok {
			board.SetStatus(state.Status)
			continue
		}
		if _, err := d.AddBoard(state.Category, state.Serial, BoardSpec{
			Greeting: state.Greeting,
			Status:   state.Status,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot writes the daemon's state to path as deterministic CBOR.
// The file is replaced atomically: a reader sees either the previous
// snapshot or the new one.
func (d *Daemon) SaveSnapshot(path string) error {
	data, err := codec.Marshal(d.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot and restores it.
func (d *Daemon) LoadSnapshot(path string) error {
	snapshot, err := ReadSnapshot(path)
	if err != nil {
		return err
	}
	return d.Restore(snapshot)
}

// ReadSnapshot decodes the snapshot file at path.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return snapshot, nil
}

// writeFileAtomic writes data to a temporary file beside path, syncs
// it, renames it into place and syncs the parent directory.
func writeFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary snapshot file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary snapshot file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}
