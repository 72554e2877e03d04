// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for assemble packages.
//
// [RequireGit], [Git], [InitRepository] and [CommitFile] build real git
// repositories in temporary directories with a fixed identity and no
// system configuration, so tests that exercise mirrors and checkouts
// do not depend on the developer's git setup. Tests skip when git is
// not installed.
//
// [PrepareAssembly] creates an assembly root whose null device already
// exists as a plain file, so sandbox scopes can be entered without the
// privilege that creating a real device node needs.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no assemble-internal dependencies.
package testutil
