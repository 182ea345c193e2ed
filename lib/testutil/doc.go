// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets. Socket paths are limited to 108 bytes (sun_path in
// sockaddr_un) and t.TempDir() paths under some build systems exceed
// that, so board endpoints in tests live under /tmp instead.
//
// [RequireReceive] and [Eventually] encapsulate the timeout safety
// valve pattern so individual tests do not sprinkle time.After calls.
// They are the only place test code waits on the wall clock.
//
// All helpers call t.Fatalf on failure.
package testutil
