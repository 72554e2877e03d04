// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package component defines the descriptor for a single unit of build
// work and a loader for definitions files that produce descriptors.
//
// A [Component] is owned by the caller that drives a build. The sandbox,
// git and cache packages read it and fill in derived fields (Git, Build,
// Install, Hash, Cache) but never persist it.
package component

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// BuildMode selects the sandboxing strategy for a component.
type BuildMode string

const (
	// Bootstrap builds run on the real filesystem root, unconfined, and
	// install directly into their final absolute location.
	Bootstrap BuildMode = "bootstrap"

	// Staging builds run chrooted inside the sandbox root with host
	// absolute search paths.
	Staging BuildMode = "staging"
)

// DefaultPrefix is the install prefix used when a component declares none.
const DefaultPrefix = "/usr"

// ErrInvalid is wrapped by every descriptor validation failure.
var ErrInvalid = errors.New("invalid component")

// Dependency is a build-time dependency as resolved by the caller: only
// its install prefix matters to the sandbox.
type Dependency struct {
	Name   string
	Prefix string
}

// Component is the descriptor for one unit of build work.
type Component struct {
	// Name uniquely identifies the component.
	Name string

	// Repo is the upstream locator, e.g. "upstream:zlib".
	Repo string

	// Ref and Version name the requested source point. Version wins
	// when both are set.
	Ref     string
	Version string

	// Git is the local mirror path, set once the mirror is resolved.
	Git string

	// Build and Install are absolute paths of this attempt's scratch
	// build tree and staging install tree.
	Build   string
	Install string

	// Mode is the build mode. The zero value means staging.
	Mode BuildMode

	// Prefix is the install prefix.
	Prefix string

	// MaxJobs overrides the global make parallelism when positive.
	MaxJobs int

	// Hash is the content hash that identifies the exact source state
	// plus dependency state. Supplied by the resolver or derived from
	// the source tree id before the cache key is computed.
	Hash string

	// Cache is the computed cache key. It is assigned before any build
	// output is logged.
	Cache string

	// Dependencies are the resolved build-time dependencies.
	Dependencies []Dependency
}

// Spec is the input to [New].
type Spec struct {
	Name         string
	Repo         string
	Ref          string
	Version      string
	Mode         BuildMode
	Prefix       string
	MaxJobs      int
	Hash         string
	Dependencies []Dependency
}

// New constructs a validated Component. Name is always required.
// Repo and one of Ref or Version are required for every mode, since
// sources are only ever fetched from git. Prefix defaults to
// [DefaultPrefix] and Mode to [Staging].
func New(spec Spec) (*Component, error) {
	var errs []error
	if spec.Name == "" {
		errs = append(errs, fmt.Errorf("%w: name is required", ErrInvalid))
	}
	if strings.ContainsRune(spec.Name, '|') {
		errs = append(errs, fmt.Errorf("%w: name %q must not contain '|'", ErrInvalid, spec.Name))
	}
	if spec.Repo == "" {
		errs = append(errs, fmt.Errorf("%w: %s: repo is required", ErrInvalid, spec.Name))
	}
	if spec.Ref == "" && spec.Version == "" {
		errs = append(errs, fmt.Errorf("%w: %s: ref or version is required", ErrInvalid, spec.Name))
	}
	if spec.Prefix != "" && !filepath.IsAbs(spec.Prefix) {
		errs = append(errs, fmt.Errorf("%w: %s: prefix %q must be absolute", ErrInvalid, spec.Name, spec.Prefix))
	}
	if spec.MaxJobs < 0 {
		errs = append(errs, fmt.Errorf("%w: %s: max-jobs must be >= 0", ErrInvalid, spec.Name))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	mode := spec.Mode
	if mode == "" {
		mode = Staging
	}
	prefix := spec.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Component{
		Name:         spec.Name,
		Repo:         spec.Repo,
		Ref:          spec.Ref,
		Version:      spec.Version,
		Mode:         mode,
		Prefix:       prefix,
		MaxJobs:      spec.MaxJobs,
		Hash:         spec.Hash,
		Dependencies: spec.Dependencies,
	}, nil
}

// SourceRef returns the ref to resolve against the mirror: the version
// if one is set, otherwise the plain ref.
func (c *Component) SourceRef() string {
	if c.Version != "" {
		return c.Version
	}
	return c.Ref
}

// BuildMode returns the effective mode, treating empty as staging.
func (c *Component) BuildMode() BuildMode {
	if c.Mode == "" {
		return Staging
	}
	return c.Mode
}

// Chrooted reports whether build commands run with the sandbox root as
// their filesystem root. Only bootstrap builds run unconfined.
func (c *Component) Chrooted() bool {
	return c.BuildMode() != Bootstrap
}

// Staging reports whether c builds in staging mode.
func (c *Component) Staging() bool {
	return c.BuildMode() == Staging
}

// InstallPrefix returns the declared prefix or [DefaultPrefix].
func (c *Component) InstallPrefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

// AssignPaths sets Build and Install under the sandbox root. Both are
// derived from the name, so concurrent builds of different components
// never share them.
func (c *Component) AssignPaths(assemblyRoot string) {
	c.Build = filepath.Join(assemblyRoot, c.Name+".build")
	c.Install = filepath.Join(assemblyRoot, c.Name+".inst")
}

// String returns the component name for log attributes.
func (c *Component) String() string {
	return c.Name
}
