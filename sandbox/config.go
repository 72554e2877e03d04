// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
)

// hostTempDir is kept writable for builds that run on the real root.
const hostTempDir = "/tmp"

// Mount requests a filesystem to be mounted inside the container.
// Target is relative to the container root.
type Mount struct {
	Target string
	Type   string
	Source string
}

// MountType constants for the Type field.
const (
	MountTypeTmpfs = "tmpfs"
	MountTypeProc  = "proc"
)

// ContainerConfig describes the container one build command runs in.
// All paths except Cwd and Mount targets are host paths.
type ContainerConfig struct {
	// Cwd is the working directory as seen inside the container.
	Cwd string

	// Root is the host directory that becomes the container's "/".
	Root string

	// Mounts are filesystems mounted inside the container.
	Mounts []Mount

	// MountProc requests a fresh /proc.
	MountProc bool

	// Binds are host directories made visible inside the container.
	Binds []Bind

	// WritablePaths are the only host paths the command may modify.
	// Everything else under Root is read-only.
	WritablePaths []string
}

// ContainerConfigFor composes the container configuration for running
// one of c's commands.
//
// Chrooted builds use the assembly root as container root and work in
// "/<basename of build dir>", with a tmpfs at dev/shm and a fresh /proc.
// Bootstrap builds use the real root and the real build directory.
// The build and install trees are always writable; chrooted builds add
// the assembly dev, proc and tmp directories and bootstrap builds add
// the host temporary directory.
func ContainerConfigFor(c *component.Component, settings *config.Config, binds []Bind) ContainerConfig {
	writable := []string{c.Build, c.Install}

	if !c.Chrooted() {
		return ContainerConfig{
			Cwd:           c.Build,
			Root:          "/",
			MountProc:     false,
			Binds:         binds,
			WritablePaths: append(writable, hostTempDir),
		}
	}

	assembly := settings.Paths.Assembly
	for _, dir := range []string{"dev", "proc", "tmp"} {
		writable = append(writable, filepath.Join(assembly, dir))
	}
	return ContainerConfig{
		Cwd:           "/" + filepath.Base(c.Build),
		Root:          assembly,
		Mounts:        []Mount{{Target: "dev/shm", Type: MountTypeTmpfs, Source: "none"}},
		MountProc:     true,
		Binds:         binds,
		WritablePaths: writable,
	}
}

// containerPath translates a host path into the path the command sees.
// Paths outside root are returned unchanged.
func (cfg ContainerConfig) containerPath(hostPath string) string {
	if cfg.Root == "" || cfg.Root == "/" {
		return hostPath
	}
	relative, err := filepath.Rel(cfg.Root, hostPath)
	if err != nil || relative == ".." || strings.HasPrefix(relative, "../") {
		return hostPath
	}
	return filepath.Join("/", relative)
}
