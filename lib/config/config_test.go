// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Root != "/var/robotd" {
		t.Errorf("expected root=/var/robotd, got %s", cfg.Root)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
	if cfg.SocketTimeoutDuration() != 6*time.Second {
		t.Errorf("expected socket timeout 6s, got %v", cfg.SocketTimeoutDuration())
	}
	want := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 3 * time.Second}
	got := cfg.BackoffSchedule()
	if len(got) != len(want) {
		t.Fatalf("expected backoff %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if cfg.CameraPollInterval() != 100*time.Millisecond {
		t.Errorf("expected camera poll 100ms, got %v", cfg.CameraPollInterval())
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when ROBOT_API_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "ROBOT_API_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	path := writeConfig(t, `
root: /tmp/robotd
socket_timeout: 2s
backoff: [10ms, 20ms]
prune_vanished: true
camera:
  poll_interval: 250ms
log_level: debug
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Root != "/tmp/robotd" {
		t.Errorf("expected root=/tmp/robotd, got %s", cfg.Root)
	}
	if cfg.SocketTimeoutDuration() != 2*time.Second {
		t.Errorf("expected socket timeout 2s, got %v", cfg.SocketTimeoutDuration())
	}
	if schedule := cfg.BackoffSchedule(); len(schedule) != 2 || schedule[1] != 20*time.Millisecond {
		t.Errorf("unexpected backoff %v", schedule)
	}
	if !cfg.PruneVanished {
		t.Error("expected prune_vanished=true")
	}
	if cfg.CameraPollInterval() != 250*time.Millisecond {
		t.Errorf("expected camera poll 250ms, got %v", cfg.CameraPollInterval())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	// Unset fields keep their defaults.
	if cfg.StartupWait != "5s" {
		t.Errorf("expected default startup_wait=5s, got %s", cfg.StartupWait)
	}
}

func TestLoadFile_EmptyBackoffDisablesRetry(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "backoff: []\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	schedule := cfg.BackoffSchedule()
	if schedule == nil || len(schedule) != 0 {
		t.Errorf("expected empty non-nil schedule, got %#v", schedule)
	}
}

func TestLoadFile_NullBackoffSelectsDefault(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "backoff:\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if schedule := cfg.BackoffSchedule(); schedule != nil {
		t.Errorf("expected nil schedule for null backoff, got %#v", schedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("null backoff does not validate: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	if _, err := LoadFile(writeConfig(t, "root: [unterminated\n")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("ROBOT_TEST_ROOT", "/srv/robotd")

	tests := []struct {
		input string
		want  string
	}{
		{"${ROBOT_TEST_ROOT}", "/srv/robotd"},
		{"${ROBOT_TEST_ROOT}/sub", "/srv/robotd/sub"},
		{"${ROBOT_TEST_UNSET:-/var/robotd}", "/var/robotd"},
		{"${HOME}/robotd", "/home/robot/robotd"},
		{"/plain/path", "/plain/path"},
	}
	vars := map[string]string{"HOME": "/home/robot"}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadFile_ExpandsRoot(t *testing.T) {
	t.Setenv("ROBOTD_ROOT", "/run/robotd-test")
	cfg, err := LoadFile(writeConfig(t, "root: ${ROBOTD_ROOT:-/var/robotd}\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Root != "/run/robotd-test" {
		t.Errorf("expected expanded root, got %s", cfg.Root)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Root = ""
	cfg.SocketTimeout = "soon"
	cfg.Backoff = []string{"1s", "-2s", "x"}
	cfg.StartupWait = "-1s"
	cfg.Camera.PollInterval = "0s"
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{
		"root is required",
		"socket_timeout",
		"backoff[1]",
		"backoff[2]",
		"startup_wait",
		"camera.poll_interval",
		"log_level",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error missing %q:\n%v", fragment, err)
		}
	}
	if strings.Contains(err.Error(), "backoff[0]") {
		t.Errorf("valid backoff[0] reported: %v", err)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve without a file: %v", err)
	}
	if cfg.Root != "/var/robotd" {
		t.Errorf("expected default root, got %s", cfg.Root)
	}

	path := writeConfig(t, "root: /srv/robotd\n")
	cfg, err = Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", path, err)
	}
	if cfg.Root != "/srv/robotd" {
		t.Errorf("expected root from file, got %s", cfg.Root)
	}

	other := writeConfig(t, "root: /opt/robotd\n")
	t.Setenv(EnvironmentVariable, other)
	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve from environment: %v", err)
	}
	if cfg.Root != "/opt/robotd" {
		t.Errorf("expected root from %s, got %s", EnvironmentVariable, cfg.Root)
	}
}
