// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the assemble
// binary.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//
// [Version] is set manually for releases. Development builds and test
// runs see the "unknown" / "0.1.0-dev" defaults.
//
// [Info] formats the one-line string printed by "assemble version";
// [Full] adds the Go toolchain and platform.
package version
