// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode selects whether styled output uses ANSI colour.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color flag value.
func ParseColorMode(value string) (ColorMode, error) {
	switch mode := ColorMode(value); mode {
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid color mode %q (want auto, always or never)", value)
	}
}

// Styler renders tables and JSON for a particular output stream.
type Styler struct {
	renderer *lipgloss.Renderer
	color    bool
}

// NewStyler returns a Styler for w. In ColorAuto mode colour is used
// only when w is a terminal.
func NewStyler(w io.Writer, mode ColorMode) *Styler {
	color := false
	switch mode {
	case ColorAlways:
		color = true
	case ColorAuto:
		if file, ok := w.(*os.File); ok {
			color = term.IsTerminal(int(file.Fd()))
		}
	}

	// lipgloss re-detects the profile from the environment unless it
	// is set explicitly, so set it both ways.
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return &Styler{renderer: renderer, color: color}
}

// Color reports whether the Styler emits ANSI colour.
func (s *Styler) Color() bool { return s.color }

// Heading renders a bold section heading.
func (s *Styler) Heading(text string) string {
	return s.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Render(text)
}

// Faint renders secondary text.
func (s *Styler) Faint(text string) string {
	return s.renderer.NewStyle().Faint(true).Render(text)
}

// Table renders rows under headers with a rounded border.
func (s *Styler) Table(headers []string, rows [][]string) string {
	headerStyle := s.renderer.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := s.renderer.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.renderer.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// JSON renders value as indented JSON, syntax highlighted when colour
// is enabled.
func (s *Styler) JSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	if !s.color {
		return string(data), nil
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, string(data), "json", "terminal256", "monokai"); err != nil {
		return string(data), nil
	}
	return buffer.String(), nil
}
