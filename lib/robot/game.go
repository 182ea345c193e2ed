// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sourcebots/robot-api/lib/connection"
)

// GameMode is whether the robot is running a match.
type GameMode string

const (
	Competition GameMode = "competition"
	Development GameMode = "development"
)

func (m GameMode) valid() bool { return m == Competition || m == Development }

// GameStatus is the game state robotd reports.
type GameStatus struct {
	Zone int      `json:"zone"`
	Mode GameMode `json:"mode"`
}

// GameState reports the zone and mode the robot was started in. Both
// are set by robotd from the competition USB stick.
type GameState struct {
	handle

	mu      sync.Mutex
	initial *GameStatus
}

// recordGreeting keeps any zone and mode robotd includes in its
// greeting. Greetings without them are accepted unchanged.
func (g *GameState) recordGreeting(greeting connection.Message) error {
	if _, ok := greeting["zone"]; !ok {
		return nil
	}
	status, err := decodeGameStatus(greeting)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.initial = &status
	g.mu.Unlock()
	return nil
}

// Initial returns the game status from the most recent greeting, if the
// greeting carried one.
func (g *GameState) Initial() (GameStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initial == nil {
		return GameStatus{}, false
	}
	return *g.initial, true
}

// Status reads the current zone and mode.
func (g *GameState) Status(ctx context.Context) (GameStatus, error) {
	response, err := g.board.SendAndReceive(ctx, connection.Message{})
	if err != nil {
		return GameStatus{}, err
	}
	for _, field := range []string{"zone", "mode"} {
		if _, ok := response[field]; !ok {
			return GameStatus{}, g.missing(field)
		}
	}
	status, err := decodeGameStatus(response)
	if err != nil {
		return GameStatus{}, fmt.Errorf("%s: %w", g, err)
	}
	return status, nil
}

// Zone returns the zone the robot starts the match in.
func (g *GameState) Zone(ctx context.Context) (int, error) {
	status, err := g.Status(ctx)
	if err != nil {
		return 0, err
	}
	return status.Zone, nil
}

// Mode returns whether the robot is in competition or development mode.
func (g *GameState) Mode(ctx context.Context) (GameMode, error) {
	status, err := g.Status(ctx)
	if err != nil {
		return "", err
	}
	return status.Mode, nil
}

func decodeGameStatus(message connection.Message) (GameStatus, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return GameStatus{}, err
	}
	var status GameStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return GameStatus{}, fmt.Errorf("decoding game status: %w", err)
	}
	if !status.Mode.valid() {
		return GameStatus{}, fmt.Errorf("unknown game mode %q", status.Mode)
	}
	return status, nil
}
