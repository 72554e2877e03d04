// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the assemble CLI command tree.
//
// Every command loads its settings from exactly one file (--config, or
// ASSEMBLE_CONFIG when the flag is absent) and, where it names a
// component, looks the component up in a definitions file
// (--definitions, or ASSEMBLE_DEFINITIONS). Commands that need a cache
// key mirror the component's repository first, since the key is derived
// from the source tree.
package commands
