// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/assemble/cmd/assemble/cli"
	"github.com/bureau-foundation/assemble/lib/version"
)

// Root builds and returns the complete assemble command tree, writing
// command output to stdout.
func Root() *cli.Command {
	return newRoot(os.Stdout)
}

func newRoot(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "assemble",
		Description: `assemble: build components from source in a sandbox.

Sources are mirrored from git, checked out per build, and built with
bubblewrap under a sanitized environment. Successful builds are recorded
in the artifact cache so unchanged components are never rebuilt.`,
		Subcommands: []*cli.Command{
			buildCommand(stdout),
			checkoutCommand(stdout),
			envCommand(stdout),
			cacheKeyCommand(stdout),
			isCachedCommand(stdout),
			validateCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintln(stdout, version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Check that this host can build",
				Command:     "assemble validate --config assemble.yaml",
			},
			{
				Description: "Build zlib and anything it depends on",
				Command:     "assemble build zlib --config assemble.yaml --definitions components.yaml",
			},
			{
				Description: "Show the sandbox command lines without running them",
				Command:     "assemble build zlib --dry-run",
			},
		},
	}
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
// Build commands run in their own process group, so the signal only
// reaches them through this cancellation.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
