// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry discovers board endpoints and indexes them.
//
// robotd exposes one directory per board category and one socket per
// board inside it, named after the board's serial. [Scan] lists such a
// directory and constructs a board for every endpoint it has not seen
// before, skipping (and logging) endpoints that fail to construct. The
// result is sorted by serial so ordinals are stable for a given set of
// boards.
//
// [List] is an immutable view over a scan result, addressable by
// ordinal and by serial. Every rescan produces a new List; a List is
// never mutated after construction.
//
// Scan never removes boards whose endpoint has disappeared: a vanished
// board keeps its ordinal and fails its next request with a lost
// connection error. [Prune] is the explicit opt-in for dropping them.
package registry
