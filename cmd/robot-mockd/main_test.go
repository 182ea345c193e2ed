// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcebots/robot-api/lib/connection"
	"github.com/sourcebots/robot-api/lib/mockrobotd"
	"github.com/sourcebots/robot-api/lib/testutil"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"--root", "/tmp/robotd",
		"--fixture", "a.jsonc",
		"--fixture", "b.jsonc",
		"--state", "state.cbor",
		"--log-level", "debug",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.root != "/tmp/robotd" || opts.statePath != "state.cbor" || opts.logLevel != "debug" {
		t.Errorf("parsed options = %+v", opts)
	}
	if len(opts.fixtures) != 2 || opts.fixtures[1] != "b.jsonc" {
		t.Errorf("fixtures = %v, want [a.jsonc b.jsonc]", opts.fixtures)
	}

	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Error("parseFlags accepted a positional argument")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ROBOT_API_CONFIG", "")
	cfg, err := loadConfig(options{root: "/tmp/elsewhere", logLevel: "warn"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Root != "/tmp/elsewhere" || cfg.LogLevel != "warn" {
		t.Errorf("config = %+v, want flag overrides applied", cfg)
	}

	if _, err := loadConfig(options{logLevel: "loud"}); err == nil {
		t.Error("loadConfig accepted an unknown log level")
	}
}

func TestPopulateFixtureThenState(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)
	work := t.TempDir()

	fixture := filepath.Join(work, "bench.jsonc")
	if err := os.WriteFile(fixture, []byte(`{
		// bench rig
		"boards": [
			{"category": "motor", "serial": "MOT1", "status": {"m0": "brake", "m1": "brake"}},
			{"category": "power", "serial": "PWR1", "status": {"power": false}},
		],
	}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	statePath := filepath.Join(work, "state.cbor")

	first := mockrobotd.New(testutil.SocketDir(t), logger)
	if err := populate(first, options{fixtures: []string{fixture}, statePath: statePath}, logger); err != nil {
		t.Fatalf("populate with missing state: %v", err)
	}
	motor, ok := first.Board("motor", "MOT1")
	if !ok {
		t.Fatal("fixture board MOT1 not served")
	}
	motor.Apply(connection.Message{"m0": "coast"})
	if err := first.SaveSnapshot(statePath); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	first.Close()

	second := mockrobotd.New(testutil.SocketDir(t), logger)
	defer second.Close()
	if err := populate(second, options{fixtures: []string{fixture}, statePath: statePath}, logger); err != nil {
		t.Fatalf("populate: %v", err)
	}
	restored, ok := second.Board("motor", "MOT1")
	if !ok {
		t.Fatal("MOT1 missing after restore")
	}
	if got := restored.Status()["m0"]; got != "coast" {
		t.Errorf("restored m0 = %v, want coast from saved state", got)
	}

	var out bytes.Buffer
	if err := dump(&out, statePath); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), `"MOT1"`) || !strings.Contains(out.String(), `"coast"`) {
		t.Errorf("dump output missing board state:\n%s", out.String())
	}
}

func TestPopulateBadFixture(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)
	fixture := filepath.Join(t.TempDir(), "broken.jsonc")
	if err := os.WriteFile(fixture, []byte(`{"boards": [{"serial": "X"}]}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	daemon := mockrobotd.New(testutil.SocketDir(t), logger)
	defer daemon.Close()
	if err := populate(daemon, options{fixtures: []string{fixture}}, logger); err == nil {
		t.Error("populate accepted a board without a category")
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--version"}, &out); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "robot-mockd ") {
		t.Errorf("version output = %q", out.String())
	}
}
