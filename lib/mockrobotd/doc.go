// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package mockrobotd is an in-process stand-in for robotd.
//
// A [Daemon] owns a root directory laid out the way robotd lays out its
// runtime directory: one subdirectory per board category, one Unix
// socket per board named after the board's serial. Each accepted
// connection receives the board's greeting and then a request loop:
//
//   - {} returns the board's current status.
//   - Any other object is merged key by key into the status, published
//     on [Daemon.Commands], and answered with the new status.
//
// A [BoardSpec.Handler] replaces the default behaviour for boards that
// need scripted replies. [MockBoard.DropConnections] and
// [Daemon.RemoveBoard] inject the failures client reconnect logic has
// to survive.
//
// Board state can be saved to and restored from a deterministic CBOR
// snapshot, and seeded from a JSONC fixture file.
package mockrobotd
