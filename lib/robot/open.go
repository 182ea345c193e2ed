// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"time"

	"github.com/sourcebots/robot-api/lib/board"
	"github.com/sourcebots/robot-api/lib/connection"
)

func openHandle(ctx context.Context, endpoint, kind string, options board.Options) (handle, error) {
	if options.Kind == "" {
		options.Kind = kind
	}
	b, err := board.Open(ctx, endpoint, options)
	if err != nil {
		return handle{}, err
	}
	return handle{board: b}, nil
}

// OpenPowerBoard connects to the power board at endpoint.
func OpenPowerBoard(ctx context.Context, endpoint string, options board.Options) (*PowerBoard, error) {
	h, err := openHandle(ctx, endpoint, "PowerBoard", options)
	if err != nil {
		return nil, err
	}
	return &PowerBoard{handle: h}, nil
}

// OpenMotorBoard connects to the motor board at endpoint.
func OpenMotorBoard(ctx context.Context, endpoint string, options board.Options) (*MotorBoard, error) {
	h, err := openHandle(ctx, endpoint, "MotorBoard", options)
	if err != nil {
		return nil, err
	}
	return &MotorBoard{handle: h}, nil
}

// OpenServoBoard connects to the servo assembly at endpoint.
func OpenServoBoard(ctx context.Context, endpoint string, options board.Options) (*ServoBoard, error) {
	h, err := openHandle(ctx, endpoint, "ServoBoard", options)
	if err != nil {
		return nil, err
	}
	return &ServoBoard{handle: h}, nil
}

// OpenGameState connects to the game state endpoint. Any greeting
// handler in options still runs, after the game status in the greeting
// has been recorded.
func OpenGameState(ctx context.Context, endpoint string, options board.Options) (*GameState, error) {
	game := &GameState{}
	next := options.Greeting
	options.Greeting = func(greeting connection.Message) error {
		if err := game.recordGreeting(greeting); err != nil {
			return err
		}
		if next != nil {
			return next(greeting)
		}
		return nil
	}
	h, err := openHandle(ctx, endpoint, "GameState", options)
	if err != nil {
		return nil, err
	}
	game.handle = h
	return game, nil
}

// OpenCamera connects to the camera at endpoint. Polling does not start
// until StartPolling is called. The camera's poller uses options.Clock
// and options.Logger.
func OpenCamera(ctx context.Context, endpoint string, options board.Options, pollInterval time.Duration) (*Camera, error) {
	h, err := openHandle(ctx, endpoint, "Camera", options)
	if err != nil {
		return nil, err
	}
	return newCamera(h.board, pollInterval, options.Clock, options.Logger), nil
}
