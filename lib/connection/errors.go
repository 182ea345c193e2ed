// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrClosed is wrapped by the TransportError returned from operations
// on a Connection after Close.
var ErrClosed = errors.New("connection: closed")

// TransportError reports a failure of the underlying stream during a
// send or receive.
type TransportError struct {
	// Op is "send" or "receive".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ProtocolError reports bytes that did not decode as the expected JSON
// message. Line holds the offending line without its terminator; it is
// empty when encoding an outgoing message failed.
type ProtocolError struct {
	Line []byte
	Err  error
}

func (e *ProtocolError) Error() string {
	if len(e.Line) == 0 {
		return fmt.Sprintf("connection protocol: %v", e.Err)
	}
	return fmt.Sprintf("connection protocol: %v (line %q)", e.Err, truncate(e.Line, 120))
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsProtocol reports whether err is or wraps a *ProtocolError.
func IsProtocol(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}

// IsHangup reports whether err is an ordinary end of a connection:
// end-of-file, use after Close, a broken pipe or a reset from the
// peer. Servers log these quietly; anything else is worth a warning.
func IsHangup(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

func truncate(line []byte, limit int) string {
	if len(line) <= limit {
		return string(line)
	}
	return string(line[:limit]) + "..."
}
