// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package connection turns a byte-stream socket into a sequence of
// whole JSON messages.
//
// The robotd wire format is newline-delimited JSON: every message is
// one UTF-8 JSON value followed by a single '\n'. The daemon may
// coalesce several messages into one write or split one message across
// several, so a [Connection] keeps a pending-bytes buffer between
// reads. Each receive drains exactly one line and leaves the remainder
// (further complete lines and at most one trailing partial line) for
// the next call.
//
// Failures come in two kinds. A [TransportError] means the stream
// itself failed (peer closed, reset, broken pipe, deadline exceeded)
// and is worth recovering by reconnecting. A [ProtocolError] means the
// bytes were delivered but did not form the expected JSON; reconnecting
// does not fix that, so callers must not retry it.
//
// A Connection is not safe for concurrent use.
package connection
