// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// robot-mockd serves a simulated robotd runtime directory. Each board
// described by a fixture or a saved snapshot gets a listening socket at
// <root>/<category>/<serial> that speaks robotd's line-delimited JSON
// protocol, so robot code and robot-probe can run without hardware.
//
// Board state is held in memory. With --state the daemon restores the
// snapshot at startup (if the file exists) and writes a fresh one on
// shutdown. --dump prints a snapshot file in CBOR diagnostic notation
// and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sourcebots/robot-api/lib/cli"
	"github.com/sourcebots/robot-api/lib/codec"
	"github.com/sourcebots/robot-api/lib/config"
	"github.com/sourcebots/robot-api/lib/mockrobotd"
	"github.com/sourcebots/robot-api/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		cli.Fatal(err)
	}
}

type options struct {
	configPath  string
	root        string
	fixtures    []string
	statePath   string
	dumpPath    string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("robot-mockd", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.root, "root", "", "runtime directory to serve boards under (default: config root)")
	flagSet.StringArrayVar(&opts.fixtures, "fixture", nil, "JSONC fixture describing boards to serve (repeatable)")
	flagSet.StringVar(&opts.statePath, "state", "", "CBOR snapshot restored at startup and saved on shutdown")
	flagSet.StringVar(&opts.dumpPath, "dump", "", "print a CBOR snapshot file in diagnostic notation and exit")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default: config log_level)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.root != "" {
		cfg.Root = opts.root
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "robot-mockd %s\n", version.Full())
		return nil
	}
	if opts.dumpPath != "" {
		return dump(stdout, opts.dumpPath)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(cfg.SlogLevel()).With("command", "robot-mockd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon := mockrobotd.New(cfg.Root, logger)
	if err := populate(daemon, opts, logger); err != nil {
		daemon.Close()
		return err
	}

	boards := daemon.Boards()
	for _, board := range boards {
		logger.Info("serving board",
			"category", board.Category(),
			"serial", board.Serial(),
			"endpoint", board.Path(),
		)
	}
	logger.Info("mock robotd running", "root", cfg.Root, "boards", len(boards))

	serve(ctx, daemon, logger)
	logger.Info("shutting down")

	var errs []error
	if opts.statePath != "" {
		if err := daemon.SaveSnapshot(opts.statePath); err != nil {
			errs = append(errs, fmt.Errorf("saving state: %w", err))
		} else {
			logger.Info("state saved", "path", opts.statePath)
		}
	}
	if err := daemon.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// populate loads fixtures in order, then the saved state on top.
func populate(daemon *mockrobotd.Daemon, opts options, logger *slog.Logger) error {
	for _, path := range opts.fixtures {
		if err := daemon.LoadFixture(path); err != nil {
			return err
		}
		logger.Debug("fixture loaded", "path", path)
	}
	if opts.statePath == "" {
		return nil
	}
	err := daemon.LoadSnapshot(opts.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no saved state, starting fresh", "path", opts.statePath)
		return nil
	}
	return err
}

// serve logs every state-changing command until ctx is done.
func serve(ctx context.Context, daemon *mockrobotd.Daemon, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case command := <-daemon.Commands():
			logger.Info("command",
				"category", command.Category,
				"serial", command.Serial,
				"request", command.Request,
			)
		}
	}
}

func dump(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	_, err = fmt.Fprintln(w, diagnostic)
	return err
}
