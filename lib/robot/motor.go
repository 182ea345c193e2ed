// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/sourcebots/robot-api/lib/connection"
)

// MotorID names one of a motor board's outputs.
type MotorID string

const (
	M0 MotorID = "m0"
	M1 MotorID = "m1"
)

func (id MotorID) valid() bool { return id == M0 || id == M1 }

type powerKind uint8

const (
	powerSpeed powerKind = iota
	powerBrake
	powerCoast
)

// Power is a motor output setting: a speed in [-1, 1], Brake, or
// Coast. A speed of exactly zero is Brake.
type Power struct {
	kind  powerKind
	speed float64
}

var (
	// Brake actively stops the motor.
	Brake = Power{kind: powerBrake}

	// Coast lets the motor spin freely.
	Coast = Power{kind: powerCoast}
)

// Speed returns a Power driving the motor at speed, which must be in
// [-1, 1].
func Speed(speed float64) (Power, error) {
	if math.IsNaN(speed) || speed < -1 || speed > 1 {
		return Power{}, fmt.Errorf("motor speed must be between -1 and 1, got %v", speed)
	}
	if speed == 0 {
		return Brake, nil
	}
	return Power{kind: powerSpeed, speed: speed}, nil
}

// IsBrake reports whether p is Brake.
func (p Power) IsBrake() bool { return p.kind == powerBrake }

// IsCoast reports whether p is Coast.
func (p Power) IsCoast() bool { return p.kind == powerCoast }

// Speed returns the speed and true when p is a non-zero speed.
func (p Power) Speed() (float64, bool) {
	return p.speed, p.kind == powerSpeed
}

func (p Power) String() string {
	switch p.kind {
	case powerBrake:
		return "brake"
	case powerCoast:
		return "coast"
	default:
		return strconv.FormatFloat(p.speed, 'g', -1, 64)
	}
}

// MarshalJSON encodes Brake and Coast as strings and speeds as numbers.
func (p Power) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case powerBrake, powerCoast:
		return json.Marshal(p.String())
	default:
		return json.Marshal(p.speed)
	}
}

// UnmarshalJSON accepts "brake", "coast" or a number in [-1, 1].
func (p *Power) UnmarshalJSON(data []byte) error {
	var word string
	if err := json.Unmarshal(data, &word); err == nil {
		switch word {
		case "brake":
			*p = Brake
			return nil
		case "coast":
			*p = Coast
			return nil
		}
		return fmt.Errorf("unknown motor state %q", word)
	}

	var speed float64
	if err := json.Unmarshal(data, &speed); err != nil {
		return fmt.Errorf("motor state %s is neither a word nor a number", data)
	}
	parsed, err := Speed(speed)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MotorBoard drives two motor outputs.
type MotorBoard struct {
	handle
}

// Motor reads the current setting of output id.
func (m *MotorBoard) Motor(ctx context.Context, id MotorID) (Power, error) {
	if !id.valid() {
		return Power{}, fmt.Errorf("unknown motor %q", id)
	}
	var status struct {
		M0 *Power `json:"m0"`
		M1 *Power `json:"m1"`
	}
	if err := m.status(ctx, &status); err != nil {
		return Power{}, err
	}
	power := status.M0
	if id == M1 {
		power = status.M1
	}
	if power == nil {
		return Power{}, m.missing(string(id))
	}
	return *power, nil
}

// SetMotor sets output id.
func (m *MotorBoard) SetMotor(ctx context.Context, id MotorID, power Power) error {
	if !id.valid() {
		return fmt.Errorf("unknown motor %q", id)
	}
	return m.command(ctx, connection.Message{string(id): power})
}
