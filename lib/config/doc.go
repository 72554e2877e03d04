// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for assemble.
//
// Configuration is loaded from a single file specified by either the
// ASSEMBLE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery, and
// no automatic file search.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// A loaded [Config] is immutable by convention. The sandbox, git and
// cache packages take it as an explicit argument and never consult the
// process environment for settings.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Build, Ccache, Git, Cache
//   - [Default] -- returns a Config with per-user defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other assemble packages.
package config
