// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Containerizer turns a container configuration, an environment and a
// command into the argument vector that runs the command in that
// container.
type Containerizer interface {
	Cmdline(cfg ContainerConfig, env Environment, argv []string) ([]string, error)
}

// NamespaceConfig defines which namespaces to unshare.
type NamespaceConfig struct {
	PID    bool
	Net    bool
	IPC    bool
	UTS    bool
	Cgroup bool
	User   bool
}

// SecurityConfig defines process-level hardening flags.
type SecurityConfig struct {
	NewSession    bool
	DieWithParent bool
}

// BwrapContainerizer builds bubblewrap command lines.
type BwrapContainerizer struct {
	// Path is the bwrap executable. Empty means look it up with
	// [BwrapPath] on each call.
	Path string

	Namespaces NamespaceConfig
	Security   SecurityConfig
}

// NewBwrapContainerizer returns a containerizer with the isolation
// build commands get by default: private IPC and hostname, and the
// command dies with its parent. Networking and the PID namespace are
// shared with the host.
func NewBwrapContainerizer() *BwrapContainerizer {
	return &BwrapContainerizer{
		Namespaces: NamespaceConfig{IPC: true, UTS: true},
		Security:   SecurityConfig{DieWithParent: true},
	}
}

// Cmdline implements [Containerizer].
//
// The container root is bound read-only at "/". Writable paths are
// bound read-write at their container location, with the dev directory
// bound as a device mount so its null node works. Mounts and /proc
// follow, then the bind pairs. The environment replaces bwrap's own
// (--clearenv) so nothing from the invoking process leaks in.
func (b *BwrapContainerizer) Cmdline(cfg ContainerConfig, env Environment, argv []string) ([]string, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("container root is required")
	}
	if cfg.Cwd == "" {
		return nil, fmt.Errorf("container working directory is required")
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("command is required")
	}

	bwrapPath := b.Path
	if bwrapPath == "" {
		var err error
		bwrapPath, err = BwrapPath()
		if err != nil {
			return nil, err
		}
	}

	args := []string{bwrapPath}
	args = addNamespaces(args, b.Namespaces)
	args = addSecurity(args, b.Security)

	args = append(args, "--ro-bind", cfg.Root, "/")
	if cfg.Root == "/" {
		// A read-only rebind of the host /dev is mounted nodev.
		args = append(args, "--dev", "/dev")
	}

	for _, path := range cfg.WritablePaths {
		target := cfg.containerPath(path)
		switch {
		case target == "/proc" && cfg.MountProc:
			// Replaced by the fresh procfs below.
		case target == "/dev":
			args = append(args, "--dev-bind", path, target)
		default:
			args = append(args, "--bind", path, target)
		}
	}

	for _, mount := range cfg.Mounts {
		target := filepath.Join("/", mount.Target)
		switch mount.Type {
		case MountTypeTmpfs:
			args = append(args, "--tmpfs", target)
		case MountTypeProc:
			args = append(args, "--proc", target)
		default:
			return nil, fmt.Errorf("unsupported mount type %q at %s", mount.Type, mount.Target)
		}
	}

	if cfg.MountProc {
		args = append(args, "--proc", "/proc")
	}

	for _, bind := range cfg.Binds {
		args = append(args, "--bind", bind.Host, cfg.containerPath(bind.Sandbox))
	}

	args = append(args, "--chdir", cfg.Cwd)

	args = append(args, "--clearenv")
	for _, key := range env.Sorted() {
		args = append(args, "--setenv", key, env[key])
	}

	args = append(args, "--")
	args = append(args, argv...)
	return args, nil
}

// addNamespaces adds namespace unsharing options.
func addNamespaces(args []string, ns NamespaceConfig) []string {
	if ns.PID {
		args = append(args, "--unshare-pid")
	}
	if ns.Net {
		args = append(args, "--unshare-net")
	}
	if ns.IPC {
		args = append(args, "--unshare-ipc")
	}
	if ns.UTS {
		args = append(args, "--unshare-uts")
	}
	if ns.Cgroup {
		args = append(args, "--unshare-cgroup")
	}
	if ns.User {
		args = append(args, "--unshare-user")
	}
	return args
}

// addSecurity adds security options.
func addSecurity(args []string, sec SecurityConfig) []string {
	if sec.NewSession {
		args = append(args, "--new-session")
	}
	if sec.DieWithParent {
		args = append(args, "--die-with-parent")
	}
	return args
}

// BwrapPath returns the path to the bwrap executable.
func BwrapPath() (string, error) {
	paths := []string{
		"/usr/bin/bwrap",
		"/usr/local/bin/bwrap",
		"/bin/bwrap",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("bwrap not found in standard locations or PATH")
}
