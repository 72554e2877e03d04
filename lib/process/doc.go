// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the assemble binary.
// It covers the raw I/O that happens before the structured logger exists
// or after main has given up on it: reporting a fatal error to stderr
// and choosing the process exit code.
//
// Errors that carry their own exit code (an ExitCode() int method, as
// on a failed build command) exit with that code so wrapper scripts
// can tell a failed build from a configuration error.
package process
