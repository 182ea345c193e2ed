// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcebots/robot-api/lib/clock"
	"github.com/sourcebots/robot-api/lib/connection"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const fakeEndpoint = "/run/robotd/motor/SR0FAKE"

// dialOutcome scripts what one Dial call on a scriptedDialer does.
type dialOutcome int

const (
	// serve connects to a fake daemon that answers every request.
	serve dialOutcome = iota
	// dropAfterGreeting connects, greets, reads one request and hangs
	// up without replying.
	dropAfterGreeting
	// garbageReply connects, greets and answers the first request with
	// a line that is not JSON.
	garbageReply
	// refuse fails the dial with *ConnectionRefusedError.
	refuse
	// missing fails the dial with *EndpointNotFoundError.
	missing
)

// scriptedDialer hands out net.Pipe connections to an in-memory fake
// daemon whose behaviour is chosen per dial.
type scriptedDialer struct {
	plan     []dialOutcome
	fallback dialOutcome
	greeting connection.Message
	status   connection.Message

	mu    sync.Mutex
	dials int
}

func (d *scriptedDialer) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	d.mu.Lock()
	index := d.dials
	d.dials++
	d.mu.Unlock()

	outcome := d.fallback
	if index < len(d.plan) {
		outcome = d.plan[index]
	}

	switch outcome {
	case refuse:
		return nil, &ConnectionRefusedError{Endpoint: endpoint}
	case missing:
		return nil, &EndpointNotFoundError{Endpoint: endpoint}
	}

	client, server := net.Pipe()
	go d.serveFake(server, outcome)
	return client, nil
}

func (d *scriptedDialer) serveFake(stream net.Conn, outcome dialOutcome) {
	conn := connection.New(stream)
	defer conn.Close()

	greeting := d.greeting
	if greeting == nil {
		greeting = connection.Message{"name": "fake"}
	}
	if err := conn.Send(greeting); err != nil {
		return
	}
	for {
		if _, err := conn.Receive(); err != nil {
			return
		}
		switch outcome {
		case dropAfterGreeting:
			return
		case garbageReply:
			stream.Write([]byte("this is not json\n"))
			continue
		}
		status := d.status
		if status == nil {
			status = connection.Message{"ok": true}
		}
		if err := conn.Send(status); err != nil {
			return
		}
	}
}

func (d *scriptedDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func openScripted(t *testing.T, dialer *scriptedDialer, options Options) (*Board, *clock.FakeClock) {
	t.Helper()
	stepping := clock.Stepping(epoch)
	options.Dialer = dialer
	if options.Clock == nil {
		options.Clock = stepping
	}
	if options.Kind == "" {
		options.Kind = "MotorBoard"
	}
	board, err := Open(context.Background(), fakeEndpoint, options)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { board.Close() })
	return board, stepping
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenPassesGreetingToHandler(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{greeting: connection.Message{"name": "X"}}

	var received connection.Message
	board, _ := openScripted(t, dialer, Options{
		Greeting: func(greeting connection.Message) error {
			received = greeting
			return nil
		},
	})

	if received["name"] != "X" {
		t.Errorf("greeting handler got %v, want name X", received)
	}
	if board.Serial() != "SR0FAKE" {
		t.Errorf("Serial() = %q, want SR0FAKE", board.Serial())
	}
	if board.String() != "MotorBoard - SR0FAKE" {
		t.Errorf("String() = %q", board.String())
	}
}

func TestOpenGreetingRejected(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{}
	rejection := errors.New("unsupported firmware")

	_, err := Open(context.Background(), fakeEndpoint, Options{
		Dialer:   dialer,
		Greeting: func(connection.Message) error { return rejection },
	})
	if !errors.Is(err, rejection) {
		t.Fatalf("Open error = %v, want greeting rejection", err)
	}
}

func TestOpenDialFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		outcome dialOutcome
		target  error
	}{
		{"missing endpoint", missing, ErrEndpointNotFound},
		{"refused", refuse, ErrConnectionRefused},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			dialer := &scriptedDialer{plan: []dialOutcome{test.outcome}}
			stepping := clock.Stepping(epoch)
			board, err := Open(context.Background(), fakeEndpoint, Options{Dialer: dialer, Clock: stepping})
			if board != nil {
				t.Error("Open returned a board alongside an error")
			}
			if !errors.Is(err, test.target) {
				t.Fatalf("Open error = %v, want %v", err, test.target)
			}
			if dialer.Dials() != 1 {
				t.Errorf("Open dialed %d times, want 1", dialer.Dials())
			}
			if len(stepping.Waits()) != 0 {
				t.Errorf("Open slept %v, want no backoff", stepping.Waits())
			}
		})
	}
}

func TestSendAndReceive(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{status: connection.Message{"m0": "brake", "m1": "coast"}}
	board, stepping := openScripted(t, dialer, Options{})

	response, err := board.SendAndReceive(context.Background(), connection.Message{})
	if err != nil {
		t.Fatalf("SendAndReceive: %v", err)
	}
	if response["m0"] != "brake" || response["m1"] != "coast" {
		t.Errorf("response = %v", response)
	}
	if board.Reconnects() != 0 || len(stepping.Waits()) != 0 {
		t.Errorf("healthy request reconnected %d times after waits %v", board.Reconnects(), stepping.Waits())
	}
}

func TestCallDecodesTypedResponse(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{status: connection.Message{"zone": 2, "mode": "competition"}}
	board, _ := openScripted(t, dialer, Options{})

	var state struct {
		Zone int    `json:"zone"`
		Mode string `json:"mode"`
	}
	if err := board.Call(context.Background(), connection.Message{}, &state); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if state.Zone != 2 || state.Mode != "competition" {
		t.Errorf("decoded %+v", state)
	}
}

func TestReconnectIsTransparent(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{
		plan:   []dialOutcome{dropAfterGreeting, serve},
		status: connection.Message{"m0": 0.5},
	}
	greetings := 0
	board, stepping := openScripted(t, dialer, Options{
		Greeting: func(connection.Message) error {
			greetings++
			return nil
		},
	})

	response, err := board.SendAndReceive(context.Background(), connection.Message{})
	if err != nil {
		t.Fatalf("SendAndReceive: %v", err)
	}
	if response["m0"] != 0.5 {
		t.Errorf("response = %v", response)
	}
	if board.Reconnects() != 1 {
		t.Errorf("Reconnects() = %d, want exactly 1", board.Reconnects())
	}
	if dialer.Dials() != 2 {
		t.Errorf("dials = %d, want 2", dialer.Dials())
	}
	if !equalDurations(stepping.Waits(), DefaultBackoff[:1]) {
		t.Errorf("waits = %v, want %v", stepping.Waits(), DefaultBackoff[:1])
	}
	if greetings != 2 {
		t.Errorf("greeting handler ran %d times, want 2 (connect and reconnect)", greetings)
	}
}

func TestRetriedRequestFailingAgainContinues(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting, dropAfterGreeting, refuse, serve}}
	board, stepping := openScripted(t, dialer, Options{})

	if _, err := board.SendAndReceive(context.Background(), connection.Message{}); err != nil {
		t.Fatalf("SendAndReceive: %v", err)
	}
	if !equalDurations(stepping.Waits(), DefaultBackoff[:3]) {
		t.Errorf("waits = %v, want %v", stepping.Waits(), DefaultBackoff[:3])
	}
	if board.Reconnects() != 2 {
		t.Errorf("Reconnects() = %d, want 2", board.Reconnects())
	}
}

func TestRetryExhaustion(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting}, fallback: refuse}
	board, stepping := openScripted(t, dialer, Options{})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	if !errors.Is(err, ErrLostConnection) {
		t.Fatalf("error = %v, want ErrLostConnection", err)
	}
	var lost *LostConnectionError
	if !errors.As(err, &lost) {
		t.Fatalf("error %T is not *LostConnectionError", err)
	}
	if lost.Attempts != len(DefaultBackoff) {
		t.Errorf("Attempts = %d, want %d", lost.Attempts, len(DefaultBackoff))
	}
	if !errors.Is(err, ErrConnectionRefused) {
		t.Errorf("error %v does not wrap the last cause", err)
	}
	if !strings.Contains(err.Error(), "MotorBoard") || !strings.Contains(err.Error(), fakeEndpoint) {
		t.Errorf("error %q does not name the board kind and endpoint", err)
	}

	if dialer.Dials() != 1+len(DefaultBackoff) {
		t.Errorf("dials = %d, want %d", dialer.Dials(), 1+len(DefaultBackoff))
	}
	if !equalDurations(stepping.Waits(), DefaultBackoff) {
		t.Errorf("waits = %v, want %v", stepping.Waits(), DefaultBackoff)
	}
}

func TestCustomBackoffSchedule(t *testing.T) {
	t.Parallel()
	schedule := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting}, fallback: refuse}
	board, stepping := openScripted(t, dialer, Options{Retry: RetryPolicy{Backoff: schedule}})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	var lost *LostConnectionError
	if !errors.As(err, &lost) || lost.Attempts != 2 {
		t.Fatalf("error = %v, want LostConnection after 2 attempts", err)
	}
	if !equalDurations(stepping.Waits(), schedule) {
		t.Errorf("waits = %v, want %v", stepping.Waits(), schedule)
	}
}

func TestEmptyBackoffDisablesReconnect(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting}}
	board, _ := openScripted(t, dialer, Options{Retry: RetryPolicy{Backoff: []time.Duration{}}})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	if !errors.Is(err, ErrLostConnection) {
		t.Fatalf("error = %v, want ErrLostConnection", err)
	}
	if dialer.Dials() != 1 {
		t.Errorf("dials = %d, want 1", dialer.Dials())
	}
}

func TestEndpointVanishStopsImmediately(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting, refuse, missing}, fallback: serve}
	board, stepping := openScripted(t, dialer, Options{})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	var lost *LostConnectionError
	if !errors.As(err, &lost) {
		t.Fatalf("error = %v, want *LostConnectionError", err)
	}
	if !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("error %v does not wrap ErrEndpointNotFound", err)
	}
	if lost.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", lost.Attempts)
	}
	if len(stepping.Waits()) != 2 {
		t.Errorf("waits = %v, want 2 steps before giving up", stepping.Waits())
	}
}

func TestGreetingRejectedOnReconnectIsLostConnection(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting}, fallback: serve}
	rejection := errors.New("firmware changed")
	var greetings atomic.Int32
	board, stepping := openScripted(t, dialer, Options{
		Greeting: func(connection.Message) error {
			if greetings.Add(1) > 1 {
				return rejection
			}
			return nil
		},
	})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	var lost *LostConnectionError
	if !errors.As(err, &lost) {
		t.Fatalf("error = %v, want *LostConnectionError", err)
	}
	if !errors.Is(err, rejection) {
		t.Errorf("error %v does not wrap the greeting rejection", err)
	}
	if lost.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", lost.Attempts)
	}
	if dialer.Dials() != 2 || len(stepping.Waits()) != 1 {
		t.Errorf("dials = %d after waits %v, want 2 dials and one wait", dialer.Dials(), stepping.Waits())
	}
}

func TestProtocolErrorNotRetried(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{plan: []dialOutcome{garbageReply}}
	board, stepping := openScripted(t, dialer, Options{})

	_, err := board.SendAndReceive(context.Background(), connection.Message{})
	if !connection.IsProtocol(err) {
		t.Fatalf("error = %v, want protocol error", err)
	}
	if errors.Is(err, ErrLostConnection) {
		t.Error("protocol error reported as lost connection")
	}
	if dialer.Dials() != 1 || len(stepping.Waits()) != 0 {
		t.Errorf("protocol error triggered reconnect: dials=%d waits=%v", dialer.Dials(), stepping.Waits())
	}
}

func TestUnencodableRequestNotRetried(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{}
	board, _ := openScripted(t, dialer, Options{})

	_, err := board.SendAndReceive(context.Background(), map[string]any{"bad": make(chan int)})
	if !connection.IsProtocol(err) {
		t.Fatalf("error = %v, want protocol error", err)
	}
	if dialer.Dials() != 1 {
		t.Errorf("dials = %d, want 1", dialer.Dials())
	}
}

func TestRecoveryAfterLostConnection(t *testing.T) {
	t.Parallel()
	plan := []dialOutcome{dropAfterGreeting}
	for range DefaultBackoff {
		plan = append(plan, refuse)
	}
	dialer := &scriptedDialer{plan: plan, fallback: serve}
	board, stepping := openScripted(t, dialer, Options{})

	if _, err := board.SendAndReceive(context.Background(), connection.Message{}); !errors.Is(err, ErrLostConnection) {
		t.Fatalf("first call error = %v, want ErrLostConnection", err)
	}

	if _, err := board.SendAndReceive(context.Background(), connection.Message{}); err != nil {
		t.Fatalf("second call: %v", err)
	}
	waits := stepping.Waits()
	if len(waits) != len(DefaultBackoff)+1 || waits[len(waits)-1] != DefaultBackoff[0] {
		t.Errorf("waits = %v, want a fresh schedule for the second call", waits)
	}
}

func TestContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(epoch)
	dialer := &scriptedDialer{plan: []dialOutcome{dropAfterGreeting}, fallback: refuse}
	board, _ := openScripted(t, dialer, Options{Clock: fake})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := board.SendAndReceive(ctx, connection.Message{})
		result <- err
	}()

	fake.WaitForTimers(1)
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, ErrLostConnection) || !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want LostConnection wrapping context.Canceled", err)
		}
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("SendAndReceive did not return after cancel")
	}
}

func TestClosedBoard(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{}
	board, _ := openScripted(t, dialer, Options{})

	if err := board.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := board.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := board.SendAndReceive(context.Background(), connection.Message{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SendAndReceive after Close = %v, want ErrClosed", err)
	}
	if err := board.Reconnect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Reconnect after Close = %v, want ErrClosed", err)
	}
	if dialer.Dials() != 1 {
		t.Errorf("closed board dialed again: %d dials", dialer.Dials())
	}
}

func TestExplicitReconnect(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{}
	var names []string
	board, _ := openScripted(t, dialer, Options{
		Greeting: func(greeting connection.Message) error {
			names = append(names, fmt.Sprint(greeting["name"]))
			return nil
		},
	})

	if err := board.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if len(names) != 2 || board.Reconnects() != 1 {
		t.Errorf("greetings = %v, reconnects = %d", names, board.Reconnects())
	}
	if _, err := board.SendAndReceive(context.Background(), connection.Message{}); err != nil {
		t.Errorf("SendAndReceive after Reconnect: %v", err)
	}
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	t.Parallel()
	dialer := &scriptedDialer{status: connection.Message{"ok": true}}
	board, _ := openScripted(t, dialer, Options{})

	var wait sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wait.Add(1)
		go func() {
			defer wait.Done()
			response, err := board.SendAndReceive(context.Background(), connection.Message{})
			if err == nil && response["ok"] != true {
				err = fmt.Errorf("unexpected response %v", response)
			}
			errs <- err
		}()
	}
	wait.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
