// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the robot
// API binaries.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//
// [Version] is set manually for releases. Unset values default to
// "unknown" / "0.1.0-dev", as in development builds and test runs.
//
//	go build -ldflags "-X github.com/sourcebots/robot-api/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
