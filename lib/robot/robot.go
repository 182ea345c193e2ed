// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcebots/robot-api/lib/board"
	"github.com/sourcebots/robot-api/lib/clock"
	"github.com/sourcebots/robot-api/lib/config"
	"github.com/sourcebots/robot-api/lib/registry"
)

// DefaultRoot is robotd's runtime directory.
const DefaultRoot = "/var/robotd"

// Board category directory names under the root.
const (
	CategoryPower  = "power"
	CategoryMotor  = "motor"
	CategoryServo  = "servo_assembly"
	CategoryCamera = "camera"
	CategoryGame   = "game"
)

// Categories lists every board category directory.
var Categories = []string{CategoryPower, CategoryMotor, CategoryServo, CategoryCamera, CategoryGame}

var (
	// ErrNoPowerBoard is returned by New when no power board is
	// attached.
	ErrNoPowerBoard = errors.New("cannot find power board")

	// ErrNoBoard is matched by every *NoBoardError.
	ErrNoBoard = errors.New("no board found")

	// ErrClosed is returned by accessors after Close.
	ErrClosed = errors.New("robot is closed")
)

// NoBoardError is returned by the singular accessors when no board of
// the category is attached.
type NoBoardError struct {
	Category string
}

func (e *NoBoardError) Error() string {
	return fmt.Sprintf("no %s boards found", e.Category)
}

func (e *NoBoardError) Is(target error) bool { return target == ErrNoBoard }

// Config configures a Robot. Zero fields take the same defaults as
// lib/config.
type Config struct {
	// Root is robotd's runtime directory. Empty selects DefaultRoot.
	Root string

	// Timeout bounds board connects, sends and reads. Zero selects
	// board.DefaultTimeout.
	Timeout time.Duration

	// Retry is every board's reconnect schedule.
	Retry board.RetryPolicy

	// StartupWait is how long New waits for a power board endpoint to
	// appear. Zero checks once.
	StartupWait time.Duration

	// PruneVanished drops boards whose endpoint has gone at each rescan.
	PruneVanished bool

	// CameraPollInterval is the delay between camera reads. Zero
	// selects DefaultCameraPollInterval.
	CameraPollInterval time.Duration

	// Dialer overrides how boards connect. Nil dials Unix sockets.
	Dialer board.Dialer

	// Clock drives backoff sleeps and camera polling. Nil selects the
	// real clock.
	Clock clock.Clock

	// Logger receives board and scan diagnostics. Nil discards them.
	Logger *slog.Logger
}

// ConfigFrom validates file configuration and converts it.
func ConfigFrom(c *config.Config) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return Config{
		Root:               c.Root,
		Timeout:            c.SocketTimeoutDuration(),
		Retry:              board.RetryPolicy{Backoff: c.BackoffSchedule()},
		StartupWait:        c.StartupWaitDuration(),
		PruneVanished:      c.PruneVanished,
		CameraPollInterval: c.CameraPollInterval(),
	}, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.StartupWait < 0 {
		errs = append(errs, fmt.Errorf("startup wait must not be negative, got %v", c.StartupWait))
	}
	if c.CameraPollInterval < 0 {
		errs = append(errs, fmt.Errorf("camera poll interval must not be negative, got %v", c.CameraPollInterval))
	}
	for i, delay := range c.Retry.Backoff {
		if delay < 0 {
			errs = append(errs, fmt.Errorf("backoff[%d] must not be negative, got %v", i, delay))
		}
	}
	return errors.Join(errs...)
}

// Robot gives access to every board attached to robotd. Accessors
// rescan the category directory on each call. All methods are safe for
// concurrent use.
type Robot struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	power   []*PowerBoard
	motors  []*MotorBoard
	servos  []*ServoBoard
	cameras []*Camera
	games   []*GameState
}

// New waits for a power board, connects to it and turns on the robot's
// power outputs.
func New(ctx context.Context, cfg Config) (*Robot, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid robot configuration: %w", err)
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	r := &Robot{config: cfg, logger: cfg.Logger}

	powerDirectory := filepath.Join(cfg.Root, CategoryPower)
	if cfg.StartupWait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, cfg.StartupWait)
		err := registry.WaitForEntry(waitCtx, powerDirectory)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				r.logger.Warn("waiting for power board failed", "directory", powerDirectory, "error", err)
			}
		}
	}

	power, err := r.PowerBoard(ctx)
	if err != nil {
		r.Close()
		if errors.Is(err, ErrNoBoard) {
			return nil, fmt.Errorf("%w in %s", ErrNoPowerBoard, powerDirectory)
		}
		return nil, err
	}
	if err := power.PowerOn(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("powering on %s: %w", power, err)
	}
	r.logger.Info("robot started", "root", cfg.Root, "power_board", power.Serial())
	return r, nil
}

// Root returns robotd's runtime directory.
func (r *Robot) Root() string { return r.config.Root }

func (r *Robot) boardOptions() board.Options {
	return board.Options{
		Retry:   r.config.Retry,
		Timeout: r.config.Timeout,
		Dialer:  r.config.Dialer,
		Clock:   r.config.Clock,
		Logger:  r.logger,
	}
}

func scanCategory[B registry.Board](ctx context.Context, r *Robot, category string, known *[]B, construct registry.Constructor[B]) (*registry.List[B], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	current := *known
	if r.config.PruneVanished {
		current = registry.Prune(r.logger, current)
	}
	current = registry.Scan(ctx, registry.ScanOptions{
		Directory: filepath.Join(r.config.Root, category),
		Logger:    r.logger,
	}, current, construct)
	*known = current
	return registry.NewList(current), nil
}

func first[B registry.Board](list *registry.List[B], err error, category string) (B, error) {
	var zero B
	if err != nil {
		return zero, err
	}
	if list.Len() == 0 {
		return zero, &NoBoardError{Category: category}
	}
	return list.Index(0)
}

// PowerBoards rescans and returns the attached power boards.
func (r *Robot) PowerBoards(ctx context.Context) (*registry.List[*PowerBoard], error) {
	return scanCategory(ctx, r, CategoryPower, &r.power, func(ctx context.Context, endpoint string) (*PowerBoard, error) {
		return OpenPowerBoard(ctx, endpoint, r.boardOptions())
	})
}

// PowerBoard returns the first power board.
func (r *Robot) PowerBoard(ctx context.Context) (*PowerBoard, error) {
	list, err := r.PowerBoards(ctx)
	return first(list, err, CategoryPower)
}

// MotorBoards rescans and returns the attached motor boards.
func (r *Robot) MotorBoards(ctx context.Context) (*registry.List[*MotorBoard], error) {
	return scanCategory(ctx, r, CategoryMotor, &r.motors, func(ctx context.Context, endpoint string) (*MotorBoard, error) {
		return OpenMotorBoard(ctx, endpoint, r.boardOptions())
	})
}

// MotorBoard returns the first motor board.
func (r *Robot) MotorBoard(ctx context.Context) (*MotorBoard, error) {
	list, err := r.MotorBoards(ctx)
	return first(list, err, CategoryMotor)
}

// ServoBoards rescans and returns the attached servo assemblies.
func (r *Robot) ServoBoards(ctx context.Context) (*registry.List[*ServoBoard], error) {
	return scanCategory(ctx, r, CategoryServo, &r.servos, func(ctx context.Context, endpoint string) (*ServoBoard, error) {
		return OpenServoBoard(ctx, endpoint, r.boardOptions())
	})
}

// ServoBoard returns the first servo assembly.
func (r *Robot) ServoBoard(ctx context.Context) (*ServoBoard, error) {
	list, err := r.ServoBoards(ctx)
	return first(list, err, CategoryServo)
}

// Cameras rescans and returns the attached cameras. Newly found cameras
// start polling immediately.
func (r *Robot) Cameras(ctx context.Context) (*registry.List[*Camera], error) {
	return scanCategory(ctx, r, CategoryCamera, &r.cameras, func(ctx context.Context, endpoint string) (*Camera, error) {
		camera, err := OpenCamera(ctx, endpoint, r.boardOptions(), r.config.CameraPollInterval)
		if err != nil {
			return nil, err
		}
		if err := camera.StartPolling(nil); err != nil {
			camera.Close()
			return nil, err
		}
		return camera, nil
	})
}

// Camera returns the first camera.
func (r *Robot) Camera(ctx context.Context) (*Camera, error) {
	list, err := r.Cameras(ctx)
	return first(list, err, CategoryCamera)
}

// GameStates rescans and returns the attached game state endpoints.
func (r *Robot) GameStates(ctx context.Context) (*registry.List[*GameState], error) {
	return scanCategory(ctx, r, CategoryGame, &r.games, func(ctx context.Context, endpoint string) (*GameState, error) {
		return OpenGameState(ctx, endpoint, r.boardOptions())
	})
}

// GameState returns the first game state endpoint.
func (r *Robot) GameState(ctx context.Context) (*GameState, error) {
	list, err := r.GameStates(ctx)
	return first(list, err, CategoryGame)
}

// Zone returns the zone reported by the first game state endpoint.
func (r *Robot) Zone(ctx context.Context) (int, error) {
	game, err := r.GameState(ctx)
	if err != nil {
		return 0, err
	}
	return game.Zone(ctx)
}

// Mode returns the mode reported by the first game state endpoint.
func (r *Robot) Mode(ctx context.Context) (GameMode, error) {
	game, err := r.GameState(ctx)
	if err != nil {
		return "", err
	}
	return game.Mode(ctx)
}

// Close stops camera polling and closes every board the robot has
// opened. Close is idempotent.
func (r *Robot) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	closeAll := func(boards []registry.Board) {
		for _, b := range boards {
			if err := b.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", b.Serial(), err))
			}
		}
	}
	closeAll(asBoards(r.cameras))
	closeAll(asBoards(r.power))
	closeAll(asBoards(r.motors))
	closeAll(asBoards(r.servos))
	closeAll(asBoards(r.games))
	r.power, r.motors, r.servos, r.cameras, r.games = nil, nil, nil, nil, nil
	return errors.Join(errs...)
}

func asBoards[B registry.Board](boards []B) []registry.Board {
	result := make([]registry.Board, len(boards))
	for i, b := range boards {
		result[i] = b
	}
	return result
}
