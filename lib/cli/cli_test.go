// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerJSONWhenPiped(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, slog.LevelInfo, false)
	logger.Debug("hidden")
	logger.Info("board reconnected", "serial", "SR0ABC")

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug filtered): %q", len(lines), buffer.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "board reconnected" || record["serial"] != "SR0ABC" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLoggerTextOnTerminal(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, slog.LevelDebug, true)
	logger.Debug("scanning", "category", "motor")

	if !strings.Contains(buffer.String(), "msg=scanning") || !strings.Contains(buffer.String(), "category=motor") {
		t.Errorf("text output = %q", buffer.String())
	}
}

func TestParseColorMode(t *testing.T) {
	for _, value := range []string{"auto", "always", "never"} {
		if _, err := ParseColorMode(value); err != nil {
			t.Errorf("ParseColorMode(%q): %v", value, err)
		}
	}
	if _, err := ParseColorMode("sometimes"); err == nil {
		t.Error("ParseColorMode accepted an invalid value")
	}
}

func TestStylerPlainOutput(t *testing.T) {
	var buffer bytes.Buffer
	styler := NewStyler(&buffer, ColorAuto)
	if styler.Color() {
		t.Fatal("a bytes.Buffer was treated as a terminal")
	}

	rendered := styler.Table([]string{"Serial", "Kind"}, [][]string{{"SR0ABC", "motor"}, {"PWR1", "power"}})
	for _, want := range []string{"Serial", "Kind", "SR0ABC", "motor", "PWR1", "power"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("table missing %q:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, "\x1b[") {
		t.Errorf("plain table contains escape codes: %q", rendered)
	}

	text, err := styler.JSON(map[string]any{"m0": "brake"})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if text != "{\n  \"m0\": \"brake\"\n}" {
		t.Errorf("JSON = %q", text)
	}
}

func TestStylerColorOutput(t *testing.T) {
	var buffer bytes.Buffer
	styler := NewStyler(&buffer, ColorAlways)

	text, err := styler.JSON(map[string]any{"zone": 2})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(text, "\x1b[") {
		t.Errorf("highlighted JSON has no escape codes: %q", text)
	}
	if !strings.Contains(text, "zone") {
		t.Errorf("highlighted JSON lost content: %q", text)
	}
}

func TestStylerRejectsUnencodable(t *testing.T) {
	styler := NewStyler(&bytes.Buffer{}, ColorNever)
	if _, err := styler.JSON(make(chan int)); err == nil {
		t.Error("JSON accepted a channel")
	}
}
