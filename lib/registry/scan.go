// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// Constructor opens a board at endpoint.
type Constructor[B Board] func(ctx context.Context, endpoint string) (B, error)

// ScanOptions configures Scan.
type ScanOptions struct {
	// Directory is the category directory to list, for example
	// /var/robotd/motor.
	Directory string

	// Logger receives construction failures. Nil discards them.
	Logger *slog.Logger
}

// Scan returns known plus a newly constructed board for every endpoint
// in the directory that known does not already cover, sorted by
// serial. Endpoints whose construction fails are logged and left out;
// they are retried on the next scan. A missing directory means no
// boards of that category are attached and yields known unchanged.
//
// Boards in known are kept even when their endpoint has gone. Scan does
// not modify known. Calls sharing a known slice must not run
// concurrently.
func Scan[B Board](ctx context.Context, options ScanOptions, known []B, construct Constructor[B]) []B {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	result := slices.Clone(known)

	entries, err := os.ReadDir(options.Directory)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("listing board directory failed",
				"directory", options.Directory,
				"error", err,
			)
		}
		return sortBySerial(result)
	}

	knownEndpoints := make(map[string]bool, len(known))
	for _, board := range known {
		knownEndpoints[board.Endpoint()] = true
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() {
			continue
		}
		endpoint := filepath.Join(options.Directory, entry.Name())
		if knownEndpoints[endpoint] {
			continue
		}

		board, err := construct(ctx, endpoint)
		if err != nil {
			logger.Warn("skipping board endpoint",
				"endpoint", endpoint,
				"error", err,
			)
			continue
		}
		logger.Debug("discovered board", "endpoint", endpoint, "serial", board.Serial())
		knownEndpoints[endpoint] = true
		result = append(result, board)
	}
	return sortBySerial(result)
}

func sortBySerial[B Board](boards []B) []B {
	slices.SortStableFunc(boards, func(a, b B) int {
		return cmp.Compare(a.Serial(), b.Serial())
	})
	return boards
}

// Prune returns the boards in known whose endpoint still exists. Boards
// whose endpoint has gone are closed and dropped. known is not
// modified.
func Prune[B Board](logger *slog.Logger, known []B) []B {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	kept := make([]B, 0, len(known))
	for _, board := range known {
		if _, err := os.Lstat(board.Endpoint()); errors.Is(err, fs.ErrNotExist) {
			if err := board.Close(); err != nil {
				logger.Debug("closing vanished board", "serial", board.Serial(), "error", err)
			}
			logger.Info("board endpoint vanished", "serial", board.Serial(), "endpoint", board.Endpoint())
			continue
		}
		kept = append(kept, board)
	}
	return kept
}
