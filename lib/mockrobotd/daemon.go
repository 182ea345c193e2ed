// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package mockrobotd

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sourcebots/robot-api/lib/connection"
)

// commandBuffer is the capacity of the Commands channel. Commands
// published while it is full are dropped with a warning rather than
// stalling the board's request loop.
const commandBuffer = 1024

// ErrDaemonClosed is returned by AddBoard after Close.
var ErrDaemonClosed = errors.New("mockrobotd: daemon closed")

// Command is a state-changing request received by a board.
type Command struct {
	Category string
	Serial   string
	Request  connection.Message
}

type boardKey struct {
	category string
	serial   string
}

// Daemon serves mock boards under a root directory.
type Daemon struct {
	root     string
	logger   *slog.Logger
	commands chan Command

	mu     sync.Mutex
	boards map[boardKey]*MockBoard
	closed bool
}

// New returns a Daemon rooted at root. The directory is created on the
// first AddBoard. A nil logger discards output.
func New(root string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Daemon{
		root:     root,
		logger:   logger,
		commands: make(chan Command, commandBuffer),
		boards:   make(map[boardKey]*MockBoard),
	}
}

// Root returns the daemon's root directory.
func (d *Daemon) Root() string { return d.root }

// Commands returns the channel on which state-changing requests are
// published, in arrival order per board.
func (d *Daemon) Commands() <-chan Command { return d.commands }

// AddBoard starts listening on root/category/serial. Any stale file at
// that path is replaced.
func (d *Daemon) AddBoard(category, serial string, spec BoardSpec) (*MockBoard, error) {
	if category == "" || serial == "" || strings.ContainsRune(category, '/') || strings.ContainsRune(serial, '/') {
		return nil, fmt.Errorf("invalid board name %q/%q", category, serial)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDaemonClosed
	}
	key := boardKey{category: category, serial: serial}
	if _, exists := d.boards[key]; exists {
		return nil, fmt.Errorf("board %s/%s already exists", category, serial)
	}

	directory := filepath.Join(d.root, category)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating category directory: %w", err)
	}
	path := filepath.Join(directory, serial)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}

	greeting := spec.Greeting
	if greeting == nil {
		greeting = connection.Message{"name": serial}
	}
	status := maps.Clone(spec.Status)
	if status == nil {
		status = connection.Message{}
	}

	board := &MockBoard{
		daemon:      d,
		category:    category,
		serial:      serial,
		path:        path,
		greeting:    greeting,
		handler:     spec.Handler,
		listener:    listener,
		logger:      d.logger.With("category", category, "serial", serial),
		status:      status,
		connections: make(map[net.Conn]struct{}),
		acceptDone:  make(chan struct{}),
	}
	d.boards[key] = board
	go board.serve()

	board.logger.Debug("mock board listening", "path", path)
	return board, nil
}

// Board returns the board registered under category and serial.
func (d *Daemon) Board(category, serial string) (*MockBoard, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	board, ok := d.boards[boardKey{category: category, serial: serial}]
	return board, ok
}

// Boards returns every board sorted by category then serial.
func (d *Daemon) Boards() []*MockBoard {
	d.mu.Lock()
	boards := slices.Collect(maps.Values(d.boards))
	d.mu.Unlock()

	slices.SortFunc(boards, func(a, b *MockBoard) int {
		if c := strings.Compare(a.category, b.category); c != 0 {
			return c
		}
		return strings.Compare(a.serial, b.serial)
	})
	return boards
}

// RemoveBoard stops the board, disconnects its clients and deletes its
// socket file, as robotd does when a board is unplugged.
func (d *Daemon) RemoveBoard(category, serial string) error {
	key := boardKey{category: category, serial: serial}

	d.mu.Lock()
	board, ok := d.boards[key]
	delete(d.boards, key)
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("no board %s/%s", category, serial)
	}
	if err := board.shutdown(); err != nil {
		return fmt.Errorf("stopping board %s/%s: %w", category, serial, err)
	}
	board.logger.Debug("mock board removed")
	return nil
}

// Close removes every board. The root directory itself is left in
// place. Close is idempotent.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	boards := d.boards
	d.boards = make(map[boardKey]*MockBoard)
	d.mu.Unlock()

	var errs []error
	for _, board := range boards {
		if err := board.shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stopping board %s/%s: %w", board.category, board.serial, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Daemon) publish(command Command) {
	select {
	case d.commands <- command:
	default:
		d.logger.Warn("command buffer full, dropping command",
			"category", command.Category,
			"serial", command.Serial,
		)
	}
}
