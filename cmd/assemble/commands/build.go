// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assemble/cmd/assemble/cli"
	"github.com/bureau-foundation/assemble/lib/builder"
)

func buildCommand(stdout io.Writer) *cli.Command {
	var (
		flags           commonFlags
		dryRun          bool
		swapEnvironment bool
		noDependencies  bool
	)

	return &cli.Command{
		Name:    "build",
		Summary: "Build components in the sandbox",
		Description: `Build one or more components. Build dependencies are built first
unless --no-deps is given. A component whose cache key is already
recorded is skipped.

Each build command runs through bubblewrap; its output goes to
<artifacts>/<cache key>.build-log. A failing command stops the run and
leaves the build and install trees in place for inspection.`,
		Usage: "assemble build <component>... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			flags.register(flagSet, true)
			flagSet.BoolVar(&dryRun, "dry-run", false, "print the sandbox command lines instead of running them")
			flagSet.BoolVar(&swapEnvironment, "swap-env", false, "also replace this process's environment while commands run")
			flagSet.BoolVar(&noDependencies, "no-deps", false, "build only the named components")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Build zlib and its dependencies",
				Command:     "assemble build zlib",
			},
			{
				Description: "Print what would run for libpng",
				Command:     "assemble build libpng --dry-run --no-deps",
			},
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return cli.Validation("usage: assemble build <component>...")
			}

			ctx, cancel := commandContext()
			defer cancel()

			s, err := flags.open("build", sessionOptions{swapEnvironment: swapEnvironment, dryRun: dryRun})
			if err != nil {
				return err
			}

			var order []*builder.Resolved
			if noDependencies {
				for _, name := range args {
					resolved, err := s.resolve(ctx, name)
					if err != nil {
						return err
					}
					order = append(order, resolved)
				}
			} else {
				order, err = s.buildOrder(ctx, args)
				if err != nil {
					return err
				}
			}

			for _, resolved := range order {
				c := resolved.Component
				commands := resolved.Definition.Commands()

				if dryRun {
					c.AssignPaths(s.settings.Paths.Assembly)
					fmt.Fprintf(stdout, "# %s (%s)\n", c.Name, c.Cache)
					for _, command := range commands {
						argv, err := s.executor.DryRun(c, command)
						if err != nil {
							return err
						}
						fmt.Fprintln(stdout, strings.Join(argv, " "))
					}
					continue
				}

				result, err := s.builder.Build(ctx, c, commands)
				if err != nil {
					return fmt.Errorf("building %s: %w", c.Name, err)
				}
				if result.Skipped {
					fmt.Fprintf(stdout, "%s is already cached at %s\n", c.Name, result.Marker)
				} else {
					fmt.Fprintf(stdout, "%s is now cached at %s\n", c.Name, result.Marker)
				}
			}
			return nil
		},
	}
}
