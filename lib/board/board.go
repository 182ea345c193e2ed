// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcebots/robot-api/lib/clock"
	"github.com/sourcebots/robot-api/lib/connection"
)

// DefaultTimeout bounds each send, each underlying read, and each
// connect when Options.Timeout is zero.
const DefaultTimeout = 6 * time.Second

// GreetingHandler inspects the first message robotd sends on every new
// connection. A non-nil error aborts the connection attempt and is
// returned from the operation that triggered it.
type GreetingHandler func(greeting connection.Message) error

// Options configures a Board. The zero value is usable.
type Options struct {
	// Kind names the board category in errors and logs, for example
	// "MotorBoard". Defaults to "Board".
	Kind string

	// Greeting runs after every successful connect, including
	// reconnects. Nil discards the greeting.
	Greeting GreetingHandler

	// Retry is the reconnect schedule. A nil Backoff selects
	// DefaultBackoff.
	Retry RetryPolicy

	// Timeout applies to connects, sends and reads. Zero selects
	// DefaultTimeout; negative disables timeouts.
	Timeout time.Duration

	// Dialer opens connections. Nil selects UnixDialer.
	Dialer Dialer

	// Clock drives backoff sleeps. Nil selects the real clock.
	Clock clock.Clock

	// Logger receives reconnect diagnostics. Nil discards them.
	Logger *slog.Logger
}

type boardState int

const (
	stateDisconnected boardState = iota
	stateConnected
	stateClosed
)

// Board is a connection to one robotd board endpoint that survives
// transient disconnects. All methods are safe for concurrent use;
// operations are serialized.
type Board struct {
	endpoint string
	serial   string
	kind     string
	greeting GreetingHandler
	retry    RetryPolicy
	timeout  time.Duration
	dialer   Dialer
	clock    clock.Clock
	logger   *slog.Logger

	mu         sync.Mutex
	state      boardState
	connection *connection.Connection
	reconnects int
}

// Open connects to the board at endpoint and completes the greeting
// handshake. Failures are reported directly: Open does not walk the
// retry schedule.
func Open(ctx context.Context, endpoint string, options Options) (*Board, error) {
	board := newBoard(endpoint, options)
	if _, err := board.connect(ctx); err != nil {
		return nil, err
	}
	return board, nil
}

func newBoard(endpoint string, options Options) *Board {
	board := &Board{
		endpoint: endpoint,
		serial:   filepath.Base(endpoint),
		kind:     options.Kind,
		greeting: options.Greeting,
		retry:    options.Retry,
		timeout:  options.Timeout,
		dialer:   options.Dialer,
		clock:    options.Clock,
		logger:   options.Logger,
	}
	if board.kind == "" {
		board.kind = "Board"
	}
	if board.retry.Backoff == nil {
		board.retry = DefaultRetryPolicy()
	}
	if board.timeout == 0 {
		board.timeout = DefaultTimeout
	}
	if board.dialer == nil {
		dialTimeout := board.timeout
		if dialTimeout < 0 {
			dialTimeout = 0
		}
		board.dialer = UnixDialer{Timeout: dialTimeout}
	}
	if board.clock == nil {
		board.clock = clock.Real()
	}
	if board.logger == nil {
		board.logger = slog.New(slog.DiscardHandler)
	}
	board.logger = board.logger.With("board", board.kind, "serial", board.serial)
	return board
}

// Endpoint returns the socket path the board was opened with.
func (b *Board) Endpoint() string { return b.endpoint }

// Serial returns the endpoint's base filename, which robotd names after
// the board's serial number.
func (b *Board) Serial() string { return b.serial }

// Kind returns the board category name.
func (b *Board) Kind() string { return b.kind }

// String returns "Kind - Serial".
func (b *Board) String() string {
	return fmt.Sprintf("%s - %s", b.kind, b.serial)
}

// Reconnects returns how many times the board has re-established its
// connection after a transport failure.
func (b *Board) Reconnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reconnects
}

// SendAndReceive sends request and returns the next message robotd
// sends back. Transport failures are retried per the board's
// RetryPolicy; see the package documentation.
func (b *Board) SendAndReceive(ctx context.Context, request any) (connection.Message, error) {
	var response connection.Message
	err := b.do(ctx, request, func(conn *connection.Connection) error {
		message, err := conn.Receive()
		if err != nil {
			return err
		}
		response = message
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// Call is SendAndReceive decoding the reply into response, which must
// be a pointer.
func (b *Board) Call(ctx context.Context, request, response any) error {
	return b.do(ctx, request, func(conn *connection.Connection) error {
		return conn.ReceiveInto(response)
	})
}

// Reconnect drops the current connection and makes one immediate
// connect attempt. It does not consult the retry schedule.
func (b *Board) Reconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateClosed {
		return ErrClosed
	}
	b.disconnectLocked()
	if _, err := b.connect(ctx); err != nil {
		return err
	}
	b.reconnects++
	return nil
}

// Close releases the connection. Later operations return ErrClosed.
// Close is idempotent.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateClosed {
		return nil
	}
	var err error
	if b.connection != nil {
		err = b.connection.Close()
		b.connection = nil
	}
	b.state = stateClosed
	return err
}

// do runs one request/response exchange, reconnecting through the
// backoff schedule on transport failure. Once the connection is lost
// the call either succeeds or returns *LostConnectionError.
func (b *Board) do(ctx context.Context, request any, receive func(*connection.Connection) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateClosed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var cause error
	if b.state == stateConnected {
		err := b.exchange(request, receive)
		if err == nil {
			return nil
		}
		if !connection.IsTransport(err) {
			return err
		}
		b.logger.Warn("board connection failed, reconnecting", "error", err)
		b.disconnectLocked()
		cause = err
	} else {
		cause = errors.New("not connected")
	}

	for attempt, delay := range b.retry.Backoff {
		select {
		case <-b.clock.After(delay):
		case <-ctx.Done():
			return b.lost(attempt, ctx.Err())
		}

		retryable, err := b.connect(ctx)
		if err != nil {
			cause = err
			if retryable {
				b.logger.Warn("reconnect attempt failed",
					"attempt", attempt+1,
					"max_attempts", b.retry.MaxAttempts(),
					"error", err,
				)
				continue
			}
			// A vanished endpoint or a refused greeting ends the schedule.
			return b.lost(attempt+1, err)
		}
		b.reconnects++
		b.logger.Info("board reconnected", "attempt", attempt+1)

		err = b.exchange(request, receive)
		if err == nil {
			return nil
		}
		if !connection.IsTransport(err) {
			return err
		}
		b.logger.Warn("request failed after reconnect", "attempt", attempt+1, "error", err)
		b.disconnectLocked()
		cause = err
	}

	return b.lost(b.retry.MaxAttempts(), cause)
}

func (b *Board) exchange(request any, receive func(*connection.Connection) error) error {
	if err := b.connection.Send(request); err != nil {
		return err
	}
	return receive(b.connection)
}

// connect dials the endpoint and consumes the greeting. On success the
// board is connected. retryable reports whether a later attempt could
// plausibly succeed.
func (b *Board) connect(ctx context.Context) (retryable bool, err error) {
	stream, err := b.dialer.Dial(ctx, b.endpoint)
	if err != nil {
		return !errors.Is(err, ErrEndpointNotFound), err
	}

	conn := connection.New(stream)
	conn.SetTimeout(b.timeout)

	greeting, err := conn.Receive()
	if err != nil {
		conn.Close()
		return connection.IsTransport(err), fmt.Errorf("receiving greeting from %s: %w", b.endpoint, err)
	}
	if b.greeting != nil {
		if err := b.greeting(greeting); err != nil {
			conn.Close()
			return false, fmt.Errorf("greeting from %s rejected: %w", b.endpoint, err)
		}
	}

	b.connection = conn
	b.state = stateConnected
	return false, nil
}

func (b *Board) disconnectLocked() {
	if b.connection != nil {
		b.connection.Close()
		b.connection = nil
	}
	b.state = stateDisconnected
}

func (b *Board) lost(attempts int, cause error) error {
	b.logger.Error("lost connection to board", "attempts", attempts, "error", cause)
	return &LostConnectionError{
		Kind:     b.kind,
		Endpoint: b.endpoint,
		Attempts: attempts,
		Err:      cause,
	}
}
