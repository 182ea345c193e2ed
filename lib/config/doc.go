// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the robot API
// and its binaries.
//
// Configuration is loaded from a single file named by either the
// ROBOT_API_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). Values missing from the file keep their [Default].
// Programs that run without a file at all use Default directly.
//
// Durations are written as Go duration strings ("100ms", "6s") and
// parsed by accessor methods after [Config.Validate] has checked them.
//
// Variable expansion is performed on the root path after loading:
// ${VAR} and ${VAR:-default} patterns are expanded from the process
// environment, so root: ${ROBOTD_ROOT:-/var/robotd} works.
//
// This package depends on no other packages in this module.
package config
