// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// ReadChunkSize is the size of each read from the underlying stream.
const ReadChunkSize = 4096

var (
	// ErrPeerClosed is wrapped, together with io.EOF, by the
	// TransportError returned when the stream reports end-of-file or a
	// zero-length read.
	ErrPeerClosed = errors.New("connection: peer closed the stream")

	// ErrInvalidJSON is wrapped by the ProtocolError returned for a
	// line that is not valid UTF-8 JSON text.
	ErrInvalidJSON = errors.New("line is not valid JSON")

	// ErrNotObject is wrapped by the ProtocolError returned by Receive
	// when a line is valid JSON but not an object.
	ErrNotObject = errors.New("message is not a JSON object")

	errPeerEOF = fmt.Errorf("%w: %w", ErrPeerClosed, io.EOF)
)

// Message is a decoded JSON object as exchanged with robotd.
type Message map[string]any

// readDeadliner and writeDeadliner are satisfied by net.Conn. Streams
// without deadline support simply never time out.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Connection frames newline-delimited JSON over a stream.
type Connection struct {
	stream  io.ReadWriteCloser
	pending []byte
	chunk   []byte
	timeout time.Duration
	closed  bool
}

// New wraps stream. The Connection takes ownership: Close closes the
// stream.
func New(stream io.ReadWriteCloser) *Connection {
	return &Connection{
		stream: stream,
		chunk:  make([]byte, ReadChunkSize),
	}
}

// SetTimeout bounds every subsequent send and every underlying read by
// d. Zero or negative clears any deadline.
func (c *Connection) SetTimeout(d time.Duration) {
	c.timeout = d
	if d > 0 {
		return
	}
	if setter, ok := c.stream.(readDeadliner); ok {
		_ = setter.SetReadDeadline(time.Time{})
	}
	if setter, ok := c.stream.(writeDeadliner); ok {
		_ = setter.SetWriteDeadline(time.Time{})
	}
}

// Send encodes message as JSON and writes it followed by a newline.
// The whole line is written or a *TransportError is returned. A value
// that cannot be encoded yields a *ProtocolError and nothing is
// written.
func (c *Connection) Send(message any) error {
	if c.closed {
		return &TransportError{Op: "send", Err: ErrClosed}
	}

	data, err := json.Marshal(message)
	if err != nil {
		return &ProtocolError{Err: fmt.Errorf("encoding message: %w", err)}
	}
	// json.Marshal escapes control characters inside strings, so the
	// only raw newline on the wire is the terminator.
	data = append(data, '\n')

	if c.timeout > 0 {
		if setter, ok := c.stream.(writeDeadliner); ok {
			if err := setter.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
				return &TransportError{Op: "send", Err: err}
			}
		}
	}

	for len(data) > 0 {
		written, err := c.stream.Write(data)
		if err != nil {
			return &TransportError{Op: "send", Err: err}
		}
		if written == 0 {
			return &TransportError{Op: "send", Err: io.ErrShortWrite}
		}
		data = data[written:]
	}
	return nil
}

// ReceiveRaw returns the next complete line, verified to be valid JSON
// text, without its newline terminator. It reads from the stream only
// while no complete line is buffered.
func (c *Connection) ReceiveRaw() (json.RawMessage, error) {
	for {
		if index := bytes.IndexByte(c.pending, '\n'); index >= 0 {
			line := make([]byte, index)
			copy(line, c.pending[:index])
			c.pending = append(c.pending[:0], c.pending[index+1:]...)

			if !utf8.Valid(line) || !json.Valid(line) {
				return nil, &ProtocolError{Line: line, Err: ErrInvalidJSON}
			}
			return json.RawMessage(line), nil
		}

		if c.closed {
			return nil, &TransportError{Op: "receive", Err: ErrClosed}
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

// fill performs one read and appends whatever arrived to the pending
// buffer.
func (c *Connection) fill() error {
	if c.timeout > 0 {
		if setter, ok := c.stream.(readDeadliner); ok {
			if err := setter.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
				return &TransportError{Op: "receive", Err: err}
			}
		}
	}

	count, err := c.stream.Read(c.chunk)
	c.pending = append(c.pending, c.chunk[:count]...)
	if err != nil {
		// Hand out lines that arrived together with the failure; the
		// stream reports the failure again on the next read.
		if bytes.IndexByte(c.chunk[:count], '\n') >= 0 {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return &TransportError{Op: "receive", Err: errPeerEOF}
		}
		return &TransportError{Op: "receive", Err: err}
	}
	if count == 0 {
		return &TransportError{Op: "receive", Err: errPeerEOF}
	}
	return nil
}

// Receive returns the next message decoded as a JSON object.
func (c *Connection) Receive() (Message, error) {
	raw, err := c.ReceiveRaw()
	if err != nil {
		return nil, err
	}

	var message Message
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil, &ProtocolError{Line: raw, Err: fmt.Errorf("%w: %v", ErrNotObject, err)}
	}
	if message == nil {
		return nil, &ProtocolError{Line: raw, Err: ErrNotObject}
	}
	return message, nil
}

// ReceiveInto decodes the next message into target, which must be a
// pointer to a value encoding/json can decode into.
func (c *Connection) ReceiveInto(target any) error {
	raw, err := c.ReceiveRaw()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &ProtocolError{Line: raw, Err: err}
	}
	return nil
}

// Buffered returns the number of received bytes not yet consumed.
func (c *Connection) Buffered() int {
	return len(c.pending)
}

// Close releases the stream. Calling Close more than once is a no-op.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	return c.stream.Close()
}
