// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcebots/robot-api/lib/board"
	"github.com/sourcebots/robot-api/lib/connection"
)

// ErrMissingField is wrapped by errors for board replies that lack a
// field the client needs.
var ErrMissingField = errors.New("reply is missing a field")

// handle carries the methods every typed client shares.
type handle struct {
	board *board.Board
}

// Serial returns the board's serial.
func (h handle) Serial() string { return h.board.Serial() }

// Endpoint returns the board's socket path.
func (h handle) Endpoint() string { return h.board.Endpoint() }

// String returns "Kind - Serial".
func (h handle) String() string { return h.board.String() }

// Close releases the board's connection.
func (h handle) Close() error { return h.board.Close() }

// Board returns the underlying connection for commands the typed
// client does not cover.
func (h handle) Board() *board.Board { return h.board }

// command sends a state-changing request and discards the reply.
func (h handle) command(ctx context.Context, request connection.Message) error {
	_, err := h.board.SendAndReceive(ctx, request)
	return err
}

// status reads the board's status into target.
func (h handle) status(ctx context.Context, target any) error {
	return h.board.Call(ctx, connection.Message{}, target)
}

func (h handle) missing(field string) error {
	return fmt.Errorf("%s: %w: %q", h.board, ErrMissingField, field)
}
