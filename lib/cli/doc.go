// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides entrypoint helpers shared by the robot API
// binaries: a terminal-aware structured logger, fatal error reporting,
// and styled output (tables and highlighted JSON) that degrades to
// plain text when the output is not a terminal.
package cli
