// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/assemble/lib/component"
)

// Resolved is a prepared component together with its definition.
type Resolved struct {
	Component  *component.Component
	Definition *component.Definition
}

// Resolver prepares components from a definitions file, preparing
// build dependencies first so their cache keys feed the dependent's
// content hash. Results are memoized per name.
type Resolver struct {
	builder     *Builder
	definitions *component.Definitions
	resolved    map[string]*Resolved
	visiting    map[string]bool
}

// NewResolver returns a Resolver over definitions.
func NewResolver(builder *Builder, definitions *component.Definitions) *Resolver {
	return &Resolver{
		builder:     builder,
		definitions: definitions,
		resolved:    make(map[string]*Resolved),
		visiting:    make(map[string]bool),
	}
}

// Resolve returns the prepared component for name. A dependency cycle
// is an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Resolved, error) {
	if resolved, ok := r.resolved[name]; ok {
		return resolved, nil
	}
	if r.visiting[name] {
		return nil, fmt.Errorf("component %q: build dependency cycle", name)
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	c, definition, err := r.definitions.Resolve(name)
	if err != nil {
		return nil, err
	}

	dependencyKeys := make([]string, 0, len(c.Dependencies))
	for _, dependency := range c.Dependencies {
		resolvedDependency, err := r.Resolve(ctx, dependency.Name)
		if err != nil {
			return nil, fmt.Errorf("resolving %s for %s: %w", dependency.Name, name, err)
		}
		dependencyKeys = append(dependencyKeys, resolvedDependency.Component.Cache)
	}

	if err := r.builder.Prepare(ctx, c, dependencyKeys); err != nil {
		return nil, err
	}

	resolved := &Resolved{Component: c, Definition: definition}
	r.resolved[name] = resolved
	return resolved, nil
}
