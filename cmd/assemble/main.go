// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Assemble builds components from source inside a bubblewrap sandbox,
// caching each successful build by source state.
package main

import (
	"os"

	"github.com/bureau-foundation/assemble/cmd/assemble/commands"
	"github.com/bureau-foundation/assemble/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
