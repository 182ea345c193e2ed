// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package robot is the user-facing view of a robot's boards.
//
// A [Robot] scans robotd's runtime directory on every accessor call, so
// boards plugged in after startup appear without restarting. Each
// category accessor returns a fresh [registry.List] addressable by
// ordinal (serial order) and by serial:
//
//	r, err := robot.New(ctx, robot.Config{Root: "/var/robotd"})
//	motor, err := r.MotorBoard(ctx)
//	err = motor.SetMotor(ctx, robot.M0, robot.Coast)
//
// The typed clients ([PowerBoard], [MotorBoard], [ServoBoard],
// [GameState], [Camera]) translate method calls into the small JSON
// commands robotd understands. Each wraps a [board.Board], so every
// call inherits its reconnect behaviour and fails with
// [board.ErrLostConnection] when a board has gone for good.
package robot
