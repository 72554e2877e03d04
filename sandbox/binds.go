// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
)

// Bind makes a host directory visible inside the sandbox. Sandbox is
// the host path of the target under the sandbox root, not the path
// the command sees.
type Bind struct {
	Host    string
	Sandbox string
}

// PlanBinds returns the bind mounts a build of c needs. With ccache
// enabled this is exactly one: the component's own subdirectory of the
// host ccache root onto the in-sandbox ccache directory. Both ends are
// created if absent; calling it again is harmless.
func PlanBinds(c *component.Component, settings *config.Config) ([]Bind, error) {
	binds := BindPlan(c, settings)
	for _, bind := range binds {
		for _, dir := range []string{bind.Host, bind.Sandbox} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating ccache directory %s: %w", dir, err)
			}
		}
	}
	return binds, nil
}

// BindPlan returns the same binds as [PlanBinds] without touching the
// filesystem.
func BindPlan(c *component.Component, settings *config.Config) []Bind {
	if settings.Ccache.Disabled {
		return nil
	}
	return []Bind{{
		Host:    filepath.Join(settings.Paths.CcacheDir, filepath.Base(c.Name)),
		Sandbox: filepath.Join(settings.Paths.Assembly, strings.TrimPrefix(CcacheDir, "/")),
	}}
}
