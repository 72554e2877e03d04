// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"strings"
)

// Capabilities describes what the build sandbox can use on this system.
type Capabilities struct {
	// BwrapAvailable is true if bubblewrap is installed.
	BwrapAvailable bool

	// BwrapPath is the path to bwrap if available.
	BwrapPath string

	// BwrapVersion is the bwrap version string.
	BwrapVersion string

	// UserNamespacesEnabled is true if unprivileged user namespaces work.
	UserNamespacesEnabled bool

	// GitPath is the git executable, empty if not found.
	GitPath string

	// CopyPath is the cp executable used to copy mirrors, empty if not
	// found.
	CopyPath string

	// Privileged is true when running as root, which creating the
	// assembly null device requires.
	Privileged bool
}

// DetectCapabilities checks what sandbox features are available.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{}

	if path, err := BwrapPath(); err == nil {
		caps.BwrapAvailable = true
		caps.BwrapPath = path

		if out, err := exec.Command(path, "--version").Output(); err == nil {
			caps.BwrapVersion = strings.TrimSpace(string(out))
		}
	}

	caps.UserNamespacesEnabled = checkUserNamespaces()

	if path, err := exec.LookPath("git"); err == nil {
		caps.GitPath = path
	}
	if path, err := exec.LookPath("cp"); err == nil {
		caps.CopyPath = path
	}
	caps.Privileged = os.Geteuid() == 0

	return caps
}

// CanRunSandbox returns true if commands can run in a container.
func (c *Capabilities) CanRunSandbox() bool {
	return c.BwrapAvailable && (c.UserNamespacesEnabled || c.Privileged)
}

// CanCheckout returns true if mirrors can be cloned and copied.
func (c *Capabilities) CanCheckout() bool {
	return c.GitPath != "" && c.CopyPath != ""
}

// checkUserNamespaces tests if unprivileged user namespaces work.
func checkUserNamespaces() bool {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return false
		}
	}
	// File not existing usually means userns is allowed.

	bwrapPath, err := BwrapPath()
	if err != nil {
		return false
	}

	cmd := exec.Command(bwrapPath,
		"--unshare-user",
		"--ro-bind", "/", "/",
		"--",
		"true",
	)
	return cmd.Run() == nil
}

// SkipReason returns a human-readable reason why sandboxing isn't available,
// or empty string if it is available.
func (c *Capabilities) SkipReason() string {
	if !c.BwrapAvailable {
		return "bubblewrap not installed"
	}
	if !c.UserNamespacesEnabled && !c.Privileged {
		return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	return ""
}
