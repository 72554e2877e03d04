// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assemble/cmd/assemble/cli"
	"github.com/bureau-foundation/assemble/lib/builder"
	"github.com/bureau-foundation/assemble/lib/cache"
	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
	"github.com/bureau-foundation/assemble/lib/git"
	"github.com/bureau-foundation/assemble/sandbox"
)

// commonFlags are accepted by every command that touches settings.
type commonFlags struct {
	configPath      string
	definitionsPath string
	verbose         bool
}

func (f *commonFlags) register(flagSet *pflag.FlagSet, withDefinitions bool) {
	flagSet.StringVar(&f.configPath, "config", "", "settings file (default: $ASSEMBLE_CONFIG)")
	if withDefinitions {
		flagSet.StringVar(&f.definitionsPath, "definitions", "", "component definitions file (default: $ASSEMBLE_DEFINITIONS)")
	}
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
}

func (f *commonFlags) logger(command string) *slog.Logger {
	return cli.NewCommandLogger(f.verbose).With("command", command)
}

func (f *commonFlags) settings() (*config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load()
}

func (f *commonFlags) definitions() (*component.Definitions, error) {
	path := f.definitionsPath
	if path == "" {
		path = os.Getenv("ASSEMBLE_DEFINITIONS")
	}
	if path == "" {
		return nil, cli.Validation("no definitions file: use --definitions or set ASSEMBLE_DEFINITIONS")
	}
	return component.LoadDefinitions(path)
}

// sessionOptions adjust how a session wires the sandbox.
type sessionOptions struct {
	swapEnvironment bool

	// dryRun tolerates a missing bwrap binary, since nothing is run.
	dryRun bool
}

// session holds everything a command needs to resolve and build
// components.
type session struct {
	settings    *config.Config
	definitions *component.Definitions
	mirrors     *git.MirrorManager
	cache       *cache.Cache
	executor    *sandbox.Executor
	builder     *builder.Builder
	resolver    *builder.Resolver
	logger      *slog.Logger
}

func (f *commonFlags) open(command string, options sessionOptions) (*session, error) {
	logger := f.logger(command)

	settings, err := f.settings()
	if err != nil {
		return nil, err
	}
	definitions, err := f.definitions()
	if err != nil {
		return nil, err
	}
	if err := settings.EnsurePaths(); err != nil {
		return nil, err
	}

	mirrors, err := git.NewMirrorManager(git.MirrorConfig{
		Root:       settings.Paths.Gits,
		RemoteBase: settings.Git.RemoteBase,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	containerizer := sandbox.NewBwrapContainerizer()
	if options.dryRun {
		if _, err := sandbox.BwrapPath(); err != nil {
			containerizer.Path = "bwrap"
		}
	}
	executor, err := sandbox.NewExecutor(sandbox.ExecutorConfig{
		Settings:      settings,
		Containerizer: containerizer,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	artifactCache := cache.New(settings.Paths.Caches, logger)
	b, err := builder.New(builder.Config{
		Settings:        settings,
		Mirrors:         mirrors,
		Cache:           artifactCache,
		Executor:        executor,
		SwapEnvironment: options.swapEnvironment,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		settings:    settings,
		definitions: definitions,
		mirrors:     mirrors,
		cache:       artifactCache,
		executor:    executor,
		builder:     b,
		resolver:    builder.NewResolver(b, definitions),
		logger:      logger,
	}, nil
}

// resolve prepares the named component, reporting an undefined name
// as a not-found error.
func (s *session) resolve(ctx context.Context, name string) (*builder.Resolved, error) {
	if _, ok := s.definitions.Lookup(name); !ok {
		return nil, cli.NotFound("component %q is not defined", name)
	}
	return s.resolver.Resolve(ctx, name)
}

// buildOrder returns the named components and their transitive build
// dependencies, dependencies first, each once.
func (s *session) buildOrder(ctx context.Context, names []string) ([]*builder.Resolved, error) {
	var order []*builder.Resolved
	seen := make(map[string]bool)

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		resolved, err := s.resolve(ctx, name)
		if err != nil {
			return err
		}
		for _, dependency := range resolved.Component.Dependencies {
			if err := visit(dependency.Name); err != nil {
				return err
			}
		}
		order = append(order, resolved)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// singleComponent checks that exactly one component name was given.
func singleComponent(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", cli.Validation("usage: %s", usage)
	}
	return args[0], nil
}
