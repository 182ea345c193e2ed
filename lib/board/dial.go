// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Dialer opens the byte stream behind a Board. The default dials a
// Unix stream socket; tests substitute streams with scripted failures.
//
// Dial should return *EndpointNotFoundError when the endpoint does not
// exist: a Board treats that as final and stops reconnecting.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	return f(ctx, endpoint)
}

// UnixDialer connects to Unix stream sockets.
type UnixDialer struct {
	// Timeout bounds the connect phase. Zero means no limit beyond the
	// context.
	Timeout time.Duration
}

// Dial connects to the socket at endpoint. ENOENT becomes
// *EndpointNotFoundError and ECONNREFUSED becomes
// *ConnectionRefusedError; other failures are wrapped.
func (d UnixDialer) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "unix", endpoint)
	if err != nil {
		return nil, classifyDialError(endpoint, err)
	}
	return conn, nil
}

func classifyDialError(endpoint string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT):
		return &EndpointNotFoundError{Endpoint: endpoint, Err: err}
	case errors.Is(err, unix.ECONNREFUSED):
		return &ConnectionRefusedError{Endpoint: endpoint, Err: err}
	default:
		return fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
}
