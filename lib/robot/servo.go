// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sourcebots/robot-api/lib/connection"
)

const (
	// ServoCount is the number of servo outputs, numbered from 0.
	ServoCount = 16

	// FirstGPIOPin and LastGPIOPin bound the usable GPIO pin numbers.
	FirstGPIOPin = 2
	LastGPIOPin  = 12
)

// ErrPinNotReadable is returned by GPIO.Read when the pin is driven as
// an output.
var ErrPinNotReadable = errors.New("pin is not in an input mode")

// PinMode is the configuration of a GPIO pin.
type PinMode string

const (
	PinInput       PinMode = "hi-z"
	PinInputPullup PinMode = "pullup"
	PinOutputHigh  PinMode = "high"
	PinOutputLow   PinMode = "low"
)

func (m PinMode) valid() bool {
	switch m {
	case PinInput, PinInputPullup, PinOutputHigh, PinOutputLow:
		return true
	}
	return false
}

func (m PinMode) readable() bool { return m == PinInput || m == PinInputPullup }

// PinValue is the level read from an input pin.
type PinValue string

const (
	PinHigh PinValue = "high"
	PinLow  PinValue = "low"
)

// ServoBoard drives servo outputs and exposes GPIO pins.
type ServoBoard struct {
	handle
}

// Servo returns output id, 0 through ServoCount-1.
func (s *ServoBoard) Servo(id int) (*Servo, error) {
	if id < 0 || id >= ServoCount {
		return nil, fmt.Errorf("servo %d out of range 0-%d", id, ServoCount-1)
	}
	return &Servo{board: s, id: id}, nil
}

// GPIO returns pin, FirstGPIOPin through LastGPIOPin.
func (s *ServoBoard) GPIO(pin int) (*GPIO, error) {
	if pin < FirstGPIOPin || pin > LastGPIOPin {
		return nil, fmt.Errorf("gpio pin %d out of range %d-%d", pin, FirstGPIOPin, LastGPIOPin)
	}
	return &GPIO{board: s, pin: pin}, nil
}

// ReadAnalogue reads every analogue input, keyed by input name.
func (s *ServoBoard) ReadAnalogue(ctx context.Context) (map[string]float64, error) {
	var reply struct {
		Values map[string]float64 `json:"analogue-values"`
	}
	if err := s.board.Call(ctx, connection.Message{"read-analogue": true}, &reply); err != nil {
		return nil, err
	}
	if reply.Values == nil {
		return nil, s.missing("analogue-values")
	}
	return reply.Values, nil
}

// ReadUltrasound triggers an ultrasound sensor wired to triggerPin and
// echoPin and returns the reading.
func (s *ServoBoard) ReadUltrasound(ctx context.Context, triggerPin, echoPin int) (float64, error) {
	var reply struct {
		Distance *float64 `json:"ultrasound"`
	}
	request := connection.Message{"read-ultrasound": []int{triggerPin, echoPin}}
	if err := s.board.Call(ctx, request, &reply); err != nil {
		return 0, err
	}
	if reply.Distance == nil {
		return 0, s.missing("ultrasound")
	}
	return *reply.Distance, nil
}

// CustomCommand passes command to custom firmware on the servo board
// and returns its reply.
func (s *ServoBoard) CustomCommand(ctx context.Context, command string) (any, error) {
	response, err := s.board.SendAndReceive(ctx, connection.Message{"custom-command": command})
	if err != nil {
		return nil, err
	}
	value, ok := response["custom-command"]
	if !ok {
		return nil, s.missing("custom-command")
	}
	return value, nil
}

// Servo is one servo output.
type Servo struct {
	board *ServoBoard
	id    int
}

// ID returns the output number.
func (s *Servo) ID() int { return s.id }

// Position reads the configured position.
func (s *Servo) Position(ctx context.Context) (float64, error) {
	var status struct {
		Servos map[string]float64 `json:"servos"`
	}
	if err := s.board.status(ctx, &status); err != nil {
		return 0, err
	}
	position, ok := status.Servos[strconv.Itoa(s.id)]
	if !ok {
		return 0, s.board.missing("servos." + strconv.Itoa(s.id))
	}
	return position, nil
}

// SetPosition moves the servo to position, in [-1, 1].
func (s *Servo) SetPosition(ctx context.Context, position float64) error {
	if math.IsNaN(position) || position < -1 || position > 1 {
		return fmt.Errorf("servo position must be between -1 and 1, got %v", position)
	}
	return s.board.command(ctx, connection.Message{
		"servos": map[string]float64{strconv.Itoa(s.id): position},
	})
}

// GPIO is one general-purpose pin.
type GPIO struct {
	board *ServoBoard
	pin   int
}

// Pin returns the pin number.
func (g *GPIO) Pin() int { return g.pin }

// Mode reads the pin's configured mode.
func (g *GPIO) Mode(ctx context.Context) (PinMode, error) {
	var status struct {
		Pins map[string]PinMode `json:"pins"`
	}
	if err := g.board.status(ctx, &status); err != nil {
		return "", err
	}
	mode, ok := status.Pins[strconv.Itoa(g.pin)]
	if !ok {
		return "", g.board.missing("pins." + strconv.Itoa(g.pin))
	}
	if !mode.valid() {
		return "", fmt.Errorf("%s: pin %d has unknown mode %q", g.board, g.pin, mode)
	}
	return mode, nil
}

// SetMode configures the pin.
func (g *GPIO) SetMode(ctx context.Context, mode PinMode) error {
	if !mode.valid() {
		return fmt.Errorf("invalid pin mode %q", mode)
	}
	return g.board.command(ctx, connection.Message{
		"pins": map[string]PinMode{strconv.Itoa(g.pin): mode},
	})
}

// Read samples the pin. The pin must be in PinInput or PinInputPullup
// mode.
func (g *GPIO) Read(ctx context.Context) (PinValue, error) {
	mode, err := g.Mode(ctx)
	if err != nil {
		return "", err
	}
	if !mode.readable() {
		return "", fmt.Errorf("reading pin %d in mode %q: %w", g.pin, mode, ErrPinNotReadable)
	}

	var reply struct {
		Values map[string]PinValue `json:"pin-values"`
	}
	if err := g.board.board.Call(ctx, connection.Message{"read-pins": []int{g.pin}}, &reply); err != nil {
		return "", err
	}
	value, ok := reply.Values[strconv.Itoa(g.pin)]
	if !ok {
		return "", g.board.missing("pin-values." + strconv.Itoa(g.pin))
	}
	if value != PinHigh && value != PinLow {
		return "", fmt.Errorf("%s: pin %d read unknown value %q", g.board, g.pin, value)
	}
	return value, nil
}
