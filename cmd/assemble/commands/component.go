// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assemble/cmd/assemble/cli"
	"github.com/bureau-foundation/assemble/sandbox"
)

func checkoutCommand(stdout io.Writer) *cli.Command {
	var flags commonFlags

	return &cli.Command{
		Name:    "checkout",
		Summary: "Check out a component's source into its build directory",
		Description: `Mirror the component's repository if needed and create
<assembly>/<component>.build as a working copy of the resolved commit.
The build directory must not exist yet.`,
		Usage: "assemble checkout <component> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
			flags.register(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			name, err := singleComponent(args, "assemble checkout <component>")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			s, err := flags.open("checkout", sessionOptions{})
			if err != nil {
				return err
			}
			resolved, err := s.resolve(ctx, name)
			if err != nil {
				return err
			}
			c := resolved.Component
			c.AssignPaths(s.settings.Paths.Assembly)
			commit, err := s.mirrors.Checkout(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s %s\n", c.Build, commit)
			return nil
		},
	}
}

func envCommand(stdout io.Writer) *cli.Command {
	var flags commonFlags

	return &cli.Command{
		Name:    "env",
		Summary: "Print the build environment of a component",
		Description: `Print the exact environment a component's build commands run
under, one KEY=VALUE per line in key order. Nothing is mirrored or built.`,
		Usage: "assemble env <component> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("env", pflag.ContinueOnError)
			flags.register(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			name, err := singleComponent(args, "assemble env <component>")
			if err != nil {
				return err
			}
			settings, err := flags.settings()
			if err != nil {
				return err
			}
			definitions, err := flags.definitions()
			if err != nil {
				return err
			}
			if _, ok := definitions.Lookup(name); !ok {
				return cli.NotFound("component %q is not defined", name)
			}
			c, _, err := definitions.Resolve(name)
			if err != nil {
				return err
			}
			c.AssignPaths(settings.Paths.Assembly)

			for _, variable := range sandbox.BuildEnvironment(c, settings, sandbox.ProcessHost()).List() {
				fmt.Fprintln(stdout, variable)
			}
			return nil
		},
	}
}

func cacheKeyCommand(stdout io.Writer) *cli.Command {
	var flags commonFlags

	return &cli.Command{
		Name:    "cache-key",
		Summary: "Print a component's cache key",
		Description: `Resolve a component's source state and print its cache key,
"<name>|<hash>.cache". The repository is mirrored first when no hash is
declared, since the hash is then derived from the source tree and the
cache keys of the build dependencies.`,
		Usage: "assemble cache-key <component> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cache-key", pflag.ContinueOnError)
			flags.register(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			name, err := singleComponent(args, "assemble cache-key <component>")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			s, err := flags.open("cache-key", sessionOptions{})
			if err != nil {
				return err
			}
			resolved, err := s.resolve(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, resolved.Component.Cache)
			return nil
		},
	}
}

func isCachedCommand(stdout io.Writer) *cli.Command {
	var flags commonFlags

	return &cli.Command{
		Name:    "is-cached",
		Summary: "Report whether a component is cached",
		Description: `Print the cache marker path and exit 0 if the component's
current source state has been built, or exit 1 if it has not.`,
		Usage: "assemble is-cached <component> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("is-cached", pflag.ContinueOnError)
			flags.register(flagSet, true)
			return flagSet
		},
		Run: func(args []string) error {
			name, err := singleComponent(args, "assemble is-cached <component>")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			s, err := flags.open("is-cached", sessionOptions{})
			if err != nil {
				return err
			}
			resolved, err := s.resolve(ctx, name)
			if err != nil {
				return err
			}
			marker, ok := s.cache.IsCached(resolved.Component)
			if !ok {
				fmt.Fprintf(stdout, "%s is not cached\n", name)
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintln(stdout, marker)
			return nil
		},
	}
}

func validateCommand(stdout io.Writer) *cli.Command {
	var flags commonFlags

	return &cli.Command{
		Name:    "validate",
		Summary: "Check that this host can build",
		Description: `Check the settings, the configured roots, bubblewrap, user
namespaces, the git and cp tools, the compiler cache directory and the
assembly root's null device. Exits 1 if any check fails.`,
		Usage: "assemble validate [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			flags.register(flagSet, false)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.Validation("usage: assemble validate")
			}
			settings, err := flags.settings()
			if err != nil {
				return err
			}

			validator := sandbox.NewValidator()
			validator.ValidateAll(settings)
			validator.PrintResults(stdout)
			if validator.HasErrors() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
