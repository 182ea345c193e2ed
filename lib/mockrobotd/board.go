// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package mockrobotd

import (
	"errors"
	"log/slog"
	"maps"
	"net"
	"sync"

	"github.com/sourcebots/robot-api/lib/connection"
)

// Handler answers one request for a board. Returning an error closes
// the client's connection without a reply.
type Handler func(board *MockBoard, request connection.Message) (connection.Message, error)

// BoardSpec describes a board added to a Daemon.
type BoardSpec struct {
	// Greeting is sent on every new connection. Nil sends
	// {"name": serial}.
	Greeting connection.Message

	// Status is the initial board state returned by {} requests.
	Status connection.Message

	// Handler overrides the default status/merge behaviour.
	Handler Handler
}

// MockBoard is one listening board endpoint.
type MockBoard struct {
	daemon   *Daemon
	category string
	serial   string
	path     string
	greeting connection.Message
	handler  Handler
	listener *net.UnixListener
	logger   *slog.Logger

	mu          sync.Mutex
	status      connection.Message
	connections map[net.Conn]struct{}
	requests    int
	closing     bool

	activeConnections sync.WaitGroup
	acceptDone        chan struct{}
}

// Category returns the board's category directory name.
func (b *MockBoard) Category() string { return b.category }

// Serial returns the board's serial, which is also its socket name.
func (b *MockBoard) Serial() string { return b.serial }

// Path returns the board's socket path.
func (b *MockBoard) Path() string { return b.path }

// Status returns a copy of the board's current status.
func (b *MockBoard) Status() connection.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.status)
}

// Update merges fields into the board's status.
func (b *MockBoard) Update(fields connection.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	maps.Copy(b.status, fields)
}

// SetStatus replaces the board's status.
func (b *MockBoard) SetStatus(status connection.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = maps.Clone(status)
	if b.status == nil {
		b.status = connection.Message{}
	}
}

// Requests returns the number of requests the board has answered.
func (b *MockBoard) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

// ConnectionCount returns the number of currently open client
// connections.
func (b *MockBoard) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.connections)
}

// Apply runs the default request behaviour: an empty request reads the
// status, anything else is merged into it and published as a command.
// Custom handlers call Apply to fall back to it.
func (b *MockBoard) Apply(request connection.Message) connection.Message {
	b.mu.Lock()
	if len(request) > 0 {
		maps.Copy(b.status, request)
	}
	response := maps.Clone(b.status)
	b.mu.Unlock()

	if len(request) > 0 {
		b.daemon.publish(Command{
			Category: b.category,
			Serial:   b.serial,
			Request:  request,
		})
	}
	return response
}

// DropConnections closes every open client connection while leaving the
// endpoint in place, so the next connect succeeds.
func (b *MockBoard) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.connections {
		conn.Close()
	}
}

func (b *MockBoard) serve() {
	defer close(b.acceptDone)
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				b.logger.Error("accept failed", "error", err)
			}
			break
		}

		b.mu.Lock()
		if b.closing {
			b.mu.Unlock()
			conn.Close()
			continue
		}
		b.connections[conn] = struct{}{}
		b.mu.Unlock()

		b.activeConnections.Add(1)
		go func() {
			defer b.activeConnections.Done()
			b.handleConnection(conn)
		}()
	}
	b.activeConnections.Wait()
}

func (b *MockBoard) handleConnection(conn net.Conn) {
	client := connection.New(conn)
	defer func() {
		b.mu.Lock()
		delete(b.connections, conn)
		b.mu.Unlock()
		client.Close()
	}()

	if err := client.Send(b.greeting); err != nil {
		b.logger.Debug("sending greeting failed", "error", err)
		return
	}

	for {
		request, err := client.Receive()
		if err != nil {
			switch {
			case connection.IsProtocol(err):
				b.logger.Warn("malformed request", "error", err)
			case connection.IsHangup(err):
				b.logger.Debug("client disconnected")
			default:
				b.logger.Warn("receiving request failed", "error", err)
			}
			return
		}

		var response connection.Message
		if b.handler != nil {
			response, err = b.handler(b, request)
			if err != nil {
				b.logger.Debug("handler rejected request", "error", err)
				return
			}
		} else {
			response = b.Apply(request)
		}

		b.mu.Lock()
		b.requests++
		b.mu.Unlock()

		if err := client.Send(response); err != nil {
			if !connection.IsHangup(err) {
				b.logger.Warn("sending response failed", "error", err)
			}
			return
		}
	}
}

// shutdown stops accepting, removes the socket file, closes every
// client connection and waits for their handlers to exit.
func (b *MockBoard) shutdown() error {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	err := b.listener.Close()
	b.DropConnections()
	<-b.acceptDone
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
