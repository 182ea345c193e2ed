// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that
// reconnect backoff and camera polling can be tested without real
// sleeps.
//
// Production code holds a Clock field and defaults it to Real(). Tests
// inject one of two fakes:
//
//   - Fake(start): time stands still until Advance is called. Use
//     WaitForTimers to block until a goroutine has registered its
//     sleep before advancing.
//   - Stepping(start): every After and Sleep fires immediately and
//     moves the clock forward by the requested duration. The requested
//     durations are recorded and returned by Waits, which lets a test
//     assert the exact backoff schedule a Board walked through.
package clock
