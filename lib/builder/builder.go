// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package builder drives a single build attempt of one component:
// mirror the source, derive the cache key, skip if already cached,
// check out, run the build commands in the sandbox, and record the
// result in the artifact cache.
//
// Errors are returned typed and unmodified ([*git.SourceError],
// [*sandbox.CommandError], [*sandbox.PrivilegeError], [git.ErrNoRepository],
// [cache.ErrNoHash]); whether to abort the run, skip the component or
// retry is the caller's decision. Build and install trees are removed
// only after a successful build.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/assemble/lib/cache"
	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
	"github.com/bureau-foundation/assemble/lib/git"
	"github.com/bureau-foundation/assemble/sandbox"
)

// Config holds the collaborators of a Builder.
type Config struct {
	Settings *config.Config
	Mirrors  *git.MirrorManager
	Cache    *cache.Cache
	Executor *sandbox.Executor

	// Host is passed to the sandbox scope. Nil means the real process.
	Host *sandbox.Host

	// SwapEnvironment also swaps the process environment while
	// commands run. Commands always receive the build environment
	// explicitly.
	SwapEnvironment bool

	Logger *slog.Logger
}

// Builder runs build attempts. It is not safe for concurrent use: the
// sandbox scope it opens owns the process working directory.
type Builder struct {
	settings        *config.Config
	mirrors         *git.MirrorManager
	cache           *cache.Cache
	executor        *sandbox.Executor
	host            *sandbox.Host
	swapEnvironment bool
	logger          *slog.Logger
}

// New creates a Builder.
func New(cfg Config) (*Builder, error) {
	var errs []error
	if cfg.Settings == nil {
		errs = append(errs, errors.New("settings are required"))
	}
	if cfg.Mirrors == nil {
		errs = append(errs, errors.New("mirror manager is required"))
	}
	if cfg.Cache == nil {
		errs = append(errs, errors.New("cache is required"))
	}
	if cfg.Executor == nil {
		errs = append(errs, errors.New("executor is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		settings:        cfg.Settings,
		mirrors:         cfg.Mirrors,
		cache:           cfg.Cache,
		executor:        cfg.Executor,
		host:            cfg.Host,
		swapEnvironment: cfg.SwapEnvironment,
		logger:          logger,
	}, nil
}

// Result describes the outcome of a successful [Builder.Build].
type Result struct {
	Component string
	CacheKey  string

	// Skipped is true when the component was already cached and
	// nothing was built.
	Skipped bool

	// Commit is the checked out commit id. Empty when skipped.
	Commit string

	// Marker is the cache marker path.
	Marker string

	// Archive is the install tree archive, if one was written.
	Archive string
}

// Prepare mirrors c's source and assigns c.Cache. If the resolver did
// not supply c.Hash, it is derived from the source tree id and the
// cache keys of c's build dependencies with [cache.ContentHash].
func (b *Builder) Prepare(ctx context.Context, c *component.Component, dependencyKeys []string) error {
	if err := b.mirrors.EnsureMirror(ctx, c); err != nil {
		return err
	}

	if c.Hash == "" {
		tree, err := b.mirrors.TreeID(ctx, c)
		if err != nil {
			return err
		}
		c.Hash = cache.ContentHash(tree, dependencyKeys)
		b.logger.Debug("derived content hash",
			"component", c.Name,
			"tree", tree,
			"dependencies", len(dependencyKeys),
			"hash", c.Hash,
		)
	}

	key, err := cache.KeyFor(c)
	if err != nil {
		return err
	}
	c.Cache = key
	return nil
}

// Build runs one build attempt of a prepared component. commands run
// in order; the first failure stops the build.
func (b *Builder) Build(ctx context.Context, c *component.Component, commands []string) (*Result, error) {
	if c.Cache == "" {
		return nil, fmt.Errorf("%s: component is not prepared (no cache key)", c.Name)
	}
	result := &Result{Component: c.Name, CacheKey: c.Cache}

	if marker, ok := b.cache.IsCached(c); ok {
		b.logger.Info("component is already cached", "component", c.Name, "marker", marker)
		result.Skipped = true
		result.Marker = marker
		return result, nil
	}

	c.AssignPaths(b.settings.Paths.Assembly)
	commit, err := b.mirrors.Checkout(ctx, c)
	if err != nil {
		return nil, err
	}
	result.Commit = commit

	if err := os.MkdirAll(c.Install, 0755); err != nil {
		return nil, fmt.Errorf("creating install directory: %w", err)
	}

	if err := b.runCommands(ctx, c, commands); err != nil {
		return nil, err
	}

	marker, err := b.cache.MarkCached(c)
	if err != nil {
		return nil, err
	}
	result.Marker = marker

	if b.settings.Cache.ArchiveArtifacts {
		archive, err := b.cache.Archive(c)
		if err != nil {
			return nil, err
		}
		result.Archive = archive
	}

	if err := b.executor.Cleanup(c); err != nil {
		return nil, err
	}
	b.logger.Info("build complete", "component", c.Name, "commit", commit, "cache", c.Cache)
	return result, nil
}

// runCommands runs commands inside one sandbox scope. The scope is
// closed on every path.
func (b *Builder) runCommands(ctx context.Context, c *component.Component, commands []string) (err error) {
	scope, err := sandbox.Enter(sandbox.ScopeConfig{
		Settings:        b.settings,
		Component:       c,
		Host:            b.host,
		SwapEnvironment: b.swapEnvironment,
		Logger:          b.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := scope.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	for _, command := range commands {
		if err := b.executor.Run(ctx, c, command); err != nil {
			return err
		}
	}
	return nil
}
