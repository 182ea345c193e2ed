// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package board

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointNotFound matches *EndpointNotFoundError.
	ErrEndpointNotFound = errors.New("board: endpoint not found")

	// ErrConnectionRefused matches *ConnectionRefusedError.
	ErrConnectionRefused = errors.New("board: connection refused")

	// ErrLostConnection matches *LostConnectionError.
	ErrLostConnection = errors.New("board: lost connection")

	// ErrClosed is returned by operations on a Board after Close.
	ErrClosed = errors.New("board: closed")
)

// EndpointNotFoundError reports that no socket exists at the endpoint
// path.
type EndpointNotFoundError struct {
	Endpoint string
	Err      error
}

func (e *EndpointNotFoundError) Error() string {
	return fmt.Sprintf("no board endpoint at %s", e.Endpoint)
}

func (e *EndpointNotFoundError) Unwrap() error { return e.Err }

func (e *EndpointNotFoundError) Is(target error) bool { return target == ErrEndpointNotFound }

// ConnectionRefusedError reports that the endpoint exists but nothing
// is accepting connections on it, typically a socket file left behind
// by a daemon that exited.
type ConnectionRefusedError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionRefusedError) Error() string {
	return fmt.Sprintf("board endpoint %s refused the connection", e.Endpoint)
}

func (e *ConnectionRefusedError) Unwrap() error { return e.Err }

func (e *ConnectionRefusedError) Is(target error) bool { return target == ErrConnectionRefused }

// LostConnectionError is the terminal failure of a request: every
// reconnect attempt failed or the endpoint disappeared. Err holds the
// last underlying cause.
type LostConnectionError struct {
	Kind     string
	Endpoint string

	// Attempts is the number of reconnect attempts made during the
	// failed call.
	Attempts int

	Err error
}

func (e *LostConnectionError) Error() string {
	return fmt.Sprintf("lost connection to %s at %s after %d reconnect attempts: %v",
		e.Kind, e.Endpoint, e.Attempts, e.Err)
}

func (e *LostConnectionError) Unwrap() error { return e.Err }

func (e *LostConnectionError) Is(target error) bool { return target == ErrLostConnection }
