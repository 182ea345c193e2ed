// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package board

import "time"

// RetryPolicy controls reconnection after a transport failure.
type RetryPolicy struct {
	// Backoff lists the delay before each reconnect attempt, in order.
	// Its length is the maximum number of reconnect attempts per call.
	// A nil slice selects DefaultBackoff; an empty non-nil slice
	// disables reconnection entirely.
	Backoff []time.Duration
}

// DefaultBackoff is the reconnect schedule used when none is
// configured.
var DefaultBackoff = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
}

// DefaultRetryPolicy returns a policy using a copy of DefaultBackoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: append([]time.Duration(nil), DefaultBackoff...)}
}

// MaxAttempts returns the number of reconnect attempts the policy
// allows per call.
func (p RetryPolicy) MaxAttempts() int {
	return len(p.Backoff)
}
