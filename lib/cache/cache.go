// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache tracks which (component, source state) pairs have
// already been built.
//
// A cache key is the component name joined with its content hash:
// "name|hash.cache". The key is a pure function of those two strings.
// Presence is recorded by an empty marker file named by the key under
// the cache root. Markers carry no build output and are never evicted
// here; they persist until something else deletes them.
//
// [ContentHash] derives the hash from a git tree id and the cache keys
// of the component's build dependencies, for callers whose resolver
// does not supply one. [Cache.Archive] optionally stores the install
// tree next to the marker.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/assemble/lib/component"
)

// ErrNoHash is returned when a cache key is requested for a component
// whose content hash is not yet known.
var ErrNoHash = errors.New("content hash is not known")

// Key returns the cache key for a component name and content hash.
func Key(name, hash string) string {
	return name + "|" + hash + ".cache"
}

// KeyFor returns the cache key of c. It fails with [ErrNoHash] if
// c.Hash is empty, so keys are never derived from a partial state.
func KeyFor(c *component.Component) (string, error) {
	if c.Hash == "" {
		return "", fmt.Errorf("%s: %w", c.Name, ErrNoHash)
	}
	return Key(c.Name, c.Hash), nil
}

// Cache manages marker files under a single root directory.
type Cache struct {
	root   string
	logger *slog.Logger
}

// New returns a Cache rooted at root. A nil logger uses slog.Default().
func New(root string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{root: root, logger: logger}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Path returns the marker path for a component.
func (c *Cache) Path(comp *component.Component) (string, error) {
	key, err := KeyFor(comp)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, key), nil
}

// IsCached returns the marker path and true if comp has been marked.
// A component without a hash is never cached.
func (c *Cache) IsCached(comp *component.Component) (string, bool) {
	path, err := c.Path(comp)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// MarkCached creates the empty marker for comp and returns its path.
// Marking an already-cached component truncates the marker to empty
// and succeeds.
func (c *Cache) MarkCached(comp *component.Component) (string, error) {
	path, err := c.Path(comp)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return "", fmt.Errorf("creating cache root %s: %w", c.root, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating cache marker: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing cache marker %s: %w", path, err)
	}
	c.logger.Info("component is now cached", "component", comp.Name, "path", path)
	return path, nil
}
