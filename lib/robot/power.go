// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcebots/robot-api/lib/connection"
)

// PowerBoard controls the robot's power distribution, start button,
// start LED and buzzer.
type PowerBoard struct {
	handle
}

// PowerOn turns on every power output.
func (p *PowerBoard) PowerOn(ctx context.Context) error {
	return p.command(ctx, connection.Message{"power": true})
}

// PowerOff turns off every power output.
func (p *PowerBoard) PowerOff(ctx context.Context) error {
	return p.command(ctx, connection.Message{"power": false})
}

// SetStartLED sets the start LED.
func (p *PowerBoard) SetStartLED(ctx context.Context, on bool) error {
	return p.command(ctx, connection.Message{"start-led": on})
}

// StartButtonPressed reads the start button.
func (p *PowerBoard) StartButtonPressed(ctx context.Context) (bool, error) {
	var status struct {
		StartButton *bool `json:"start-button"`
	}
	if err := p.status(ctx, &status); err != nil {
		return false, err
	}
	if status.StartButton == nil {
		return false, p.missing("start-button")
	}
	return *status.StartButton, nil
}

// Buzz queues a tone on the buzzer. The daemon plays queued tones in
// order; Buzz returns once the tone is queued.
func (p *PowerBoard) Buzz(ctx context.Context, duration time.Duration, frequencyHz int) error {
	if frequencyHz <= 0 {
		return fmt.Errorf("buzz frequency must be positive, got %d", frequencyHz)
	}
	if duration < 0 {
		return fmt.Errorf("buzz duration must not be negative, got %v", duration)
	}
	return p.command(ctx, connection.Message{"buzz": map[string]any{
		"frequency": frequencyHz,
		"duration":  duration.Milliseconds(),
	}})
}
