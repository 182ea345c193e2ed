// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package board provides a reliable request/response channel to one
// robotd board endpoint.
//
// A [Board] owns a [connection.Connection] to a Unix socket at a
// filesystem path. Opening a Board connects immediately and consumes
// the daemon's greeting, passing it to an optional [GreetingHandler].
// A Board is never returned half-connected: Open either yields a
// connected Board or an error such as [EndpointNotFoundError] or
// [ConnectionRefusedError].
//
// Request operations ([Board.SendAndReceive], [Board.Call]) hide
// transient connection loss. When a send or receive fails at the
// transport level the Board closes its connection and walks the
// [RetryPolicy] backoff schedule: sleep, reconnect (re-running the
// greeting handshake), retry the whole request. A retried request
// that fails again moves on to the next step. When the schedule is
// exhausted, or the endpoint file has disappeared, the call fails with
// [LostConnectionError], the single terminal error callers handle.
// Protocol errors (malformed JSON) are never retried.
//
// A Board serializes its own operations, so a background poller and a
// foreground caller may share one. Each call blocks for the duration
// of its I/O and any backoff sleeps; the context aborts a backoff wait.
package board
