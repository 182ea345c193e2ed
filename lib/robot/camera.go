// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sourcebots/robot-api/lib/board"
	"github.com/sourcebots/robot-api/lib/clock"
	"github.com/sourcebots/robot-api/lib/connection"
)

// DefaultCameraPollInterval is used when a camera is opened with a zero
// poll interval.
const DefaultCameraPollInterval = 100 * time.Millisecond

var (
	// ErrNotPolling is returned by See when the camera has never
	// produced a frame and is not polling.
	ErrNotPolling = errors.New("camera is not polling")

	// ErrAlreadyPolling is returned by StartPolling on a camera whose
	// poller is running.
	ErrAlreadyPolling = errors.New("camera is already polling")
)

// Camera reports the markers robotd's vision pipeline sees. A
// background poller keeps the latest frame; See returns it.
type Camera struct {
	handle

	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	markers []Marker
	ready   chan struct{} // closed on the first frame
	quit    chan struct{} // nil when not polling
	done    chan struct{} // closed when the poller exits
	lastErr error
}

func newCamera(b *board.Board, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Camera {
	if interval <= 0 {
		interval = DefaultCameraPollInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Camera{
		handle:   handle{board: b},
		interval: interval,
		clock:    clk,
		logger:   logger.With("camera", b.Serial()),
		ready:    make(chan struct{}),
	}
}

// StartPolling starts the background poller. The poller runs until
// stop is closed, StopPolling or Close is called, or the board is
// closed. A nil stop leaves StopPolling as the only way to end it.
func (c *Camera) StartPolling(stop <-chan struct{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quit != nil {
		select {
		case <-c.done:
		default:
			return ErrAlreadyPolling
		}
	}
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	go c.poll(stop, c.quit, c.done)
	return nil
}

// StopPolling stops the poller and waits for it to exit. The last frame
// stays available to See.
func (c *Camera) StopPolling() {
	c.mu.Lock()
	quit, done := c.quit, c.done
	c.quit = nil
	c.mu.Unlock()
	if quit == nil {
		return
	}
	close(quit)
	<-done
}

// Polling reports whether the poller is running.
func (c *Camera) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quit == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// See returns the markers in the latest frame, nearest first. It waits
// for the first frame if none has arrived yet.
func (c *Camera) See(ctx context.Context) ([]Marker, error) {
	c.mu.Lock()
	ready, done := c.ready, c.done
	polling := c.quit != nil
	c.mu.Unlock()

	select {
	case <-ready:
		return c.latest(), nil
	default:
	}
	if !polling {
		return nil, fmt.Errorf("%s: %w", c, ErrNotPolling)
	}

	select {
	case <-ready:
		return c.latest(), nil
	case <-done:
		select {
		case <-ready:
			return c.latest(), nil
		default:
		}
		c.mu.Lock()
		lastErr := c.lastErr
		c.mu.Unlock()
		if lastErr != nil {
			return nil, fmt.Errorf("%s: poller stopped before the first frame: %w", c, lastErr)
		}
		return nil, fmt.Errorf("%s: %w", c, ErrNotPolling)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the poller and closes the board.
func (c *Camera) Close() error {
	c.StopPolling()
	return c.board.Close()
}

func (c *Camera) latest() []Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.markers)
}

func (c *Camera) poll(stop <-chan struct{}, quit, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
		case <-quit:
		case <-ctx.Done():
		}
		cancel()
	}()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Debug("camera polling started", "interval", c.interval)
	for {
		if !c.pollOnce(ctx) {
			c.logger.Debug("camera polling stopped")
			return
		}
		select {
		case <-ctx.Done():
			c.logger.Debug("camera polling stopped")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce reads one frame. It returns false when polling should end.
func (c *Camera) pollOnce(ctx context.Context) bool {
	var frame struct {
		Tokens []Marker `json:"tokens"`
	}
	err := c.board.Call(ctx, connection.Message{}, &frame)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		if errors.Is(err, board.ErrClosed) {
			return false
		}
		c.logger.Warn("camera poll failed", "error", err)
		return true
	}

	sortByDistance(frame.Tokens)
	c.mu.Lock()
	c.markers = frame.Tokens
	c.lastErr = nil
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	c.mu.Unlock()
	return true
}
