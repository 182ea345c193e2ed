// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// robot-probe lists every board robotd exposes and prints each board's
// greeting and current status. It only reads: no commands are sent and
// the power board is left as it is.
//
// Output is a table of boards followed by per-board status JSON, or a
// single JSON document with --json.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sourcebots/robot-api/lib/board"
	"github.com/sourcebots/robot-api/lib/cli"
	"github.com/sourcebots/robot-api/lib/config"
	"github.com/sourcebots/robot-api/lib/connection"
	"github.com/sourcebots/robot-api/lib/registry"
	"github.com/sourcebots/robot-api/lib/robot"
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
	jsonOutput  bool
	color       string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("robot-probe", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.root, "root", "", "robotd runtime directory (default: config root)")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "print a JSON document instead of tables")
	flagSet.StringVar(&opts.color, "color", string(cli.ColorAuto), "auto, always or never")
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

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "robot-probe %s\n", version.Full())
		return nil
	}
	colorMode, err := cli.ParseColorMode(opts.color)
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	if opts.root != "" {
		cfg.Root = opts.root
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := cli.NewCommandLogger(cfg.SlogLevel()).With("command", "robot-probe")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports := probe(ctx, cfg, logger)
	if opts.jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}
	return render(stdout, cli.NewStyler(stdout, colorMode), cfg.Root, reports)
}

// report is what robot-probe learned about one endpoint.
type report struct {
	Category string             `json:"category"`
	Serial   string             `json:"serial"`
	Endpoint string             `json:"endpoint"`
	Greeting connection.Message `json:"greeting,omitempty"`
	Status   connection.Message `json:"status,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// probedBoard remembers the greeting its board was opened with.
type probedBoard struct {
	*board.Board
	greeting connection.Message
}

// probe opens every endpoint under the root, reads its status and
// closes it again.
func probe(ctx context.Context, cfg *config.Config, logger *slog.Logger) []report {
	base := board.Options{
		Timeout: cfg.SocketTimeoutDuration(),
		Retry:   board.RetryPolicy{Backoff: cfg.BackoffSchedule()},
		Logger:  logger,
	}

	var reports []report
	for _, category := range robot.Categories {
		var failed []report
		construct := func(ctx context.Context, endpoint string) (*probedBoard, error) {
			probed := &probedBoard{}
			boardOptions := base
			boardOptions.Kind = category
			boardOptions.Greeting = func(greeting connection.Message) error {
				probed.greeting = greeting
				return nil
			}
			b, err := board.Open(ctx, endpoint, boardOptions)
			if err != nil {
				failed = append(failed, report{
					Category: category,
					Serial:   filepath.Base(endpoint),
					Endpoint: endpoint,
					Error:    err.Error(),
				})
				return nil, err
			}
			probed.Board = b
			return probed, nil
		}

		found := registry.Scan[*probedBoard](ctx, registry.ScanOptions{
			Directory: filepath.Join(cfg.Root, category),
			Logger:    logger,
		}, nil, construct)

		for _, probed := range found {
			entry := report{
				Category: category,
				Serial:   probed.Serial(),
				Endpoint: probed.Endpoint(),
				Greeting: probed.greeting,
			}
			status, err := probed.SendAndReceive(ctx, connection.Message{})
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Status = status
			}
			probed.Close()
			reports = append(reports, entry)
		}
		reports = append(reports, failed...)
	}
	return reports
}

func render(w io.Writer, styler *cli.Styler, root string, reports []report) error {
	fmt.Fprintln(w, styler.Heading("Boards under "+root))
	if len(reports) == 0 {
		fmt.Fprintln(w, styler.Faint("no boards found"))
		return nil
	}

	rows := make([][]string, 0, len(reports))
	for _, entry := range reports {
		state := "ok"
		if entry.Error != "" {
			state = "unreachable"
		}
		rows = append(rows, []string{entry.Category, entry.Serial, state, entry.Endpoint})
	}
	fmt.Fprintln(w, styler.Table([]string{"CATEGORY", "SERIAL", "STATE", "ENDPOINT"}, rows))

	for _, entry := range reports {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styler.Heading(entry.Category+"/"+entry.Serial))
		if entry.Error != "" {
			fmt.Fprintln(w, styler.Faint(entry.Error))
			continue
		}
		status, err := styler.JSON(entry.Status)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, status)
	}
	return nil
}
