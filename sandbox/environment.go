// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
)

const (
	// CcacheDir is where the compiler cache appears inside the sandbox.
	CcacheDir = "/tmp/ccache"

	// ccacheBinDir holds the ccache compiler wrappers.
	ccacheBinDir = "/usr/lib/ccache"

	// BuildUser is the fixed user identity build commands see.
	BuildUser = "builder"

	// BuildHome is the fixed home directory of BuildUser.
	BuildHome = "/tmp/"
)

// basePath is the OS search path every sandboxed command ends with.
var basePath = []string{"/sbin", "/usr/sbin", "/bin", "/usr/bin"}

// Host supplies the only two facts about the invoking machine the
// environment depends on. Tests substitute fixed values.
type Host struct {
	// Path is the host PATH, appended for builds that are not staged.
	Path string

	// Exists reports whether a host file exists.
	Exists func(path string) bool
}

// ProcessHost returns a Host backed by the current process.
func ProcessHost() Host {
	return Host{
		Path: os.Getenv("PATH"),
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

func (h Host) exists(path string) bool {
	if h.Exists == nil {
		return false
	}
	return h.Exists(path)
}

// Environment is the exact variable set a build command runs under.
type Environment map[string]string

// Sorted returns the variable names in lexical order.
func (e Environment) Sorted() []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// List returns the environment as KEY=VALUE strings sorted by key, the
// form exec.Cmd.Env expects.
func (e Environment) List() []string {
	list := make([]string, 0, len(e))
	for _, key := range e.Sorted() {
		list = append(list, key+"="+e[key])
	}
	return list
}

// BuildEnvironment computes the sanitized environment for building c.
// The result depends only on its arguments.
//
// Staged builds see host-absolute search paths because they run
// chrooted in the assembly root. Any other mode runs on the real root,
// so the compiler cache and prefix bin directories are rebased under
// the assembly root and the host PATH is appended.
func BuildEnvironment(c *component.Component, settings *config.Config, host Host) Environment {
	env := make(Environment)

	var ccachePath []string
	if !settings.Ccache.Disabled {
		ccachePath = []string{ccacheBinDir}
		env["CCACHE_DIR"] = CcacheDir

		var extraFiles []string
		for _, file := range settings.Ccache.ExtraFiles {
			if host.exists(file) {
				extraFiles = append(extraFiles, file)
			}
		}
		env["CCACHE_EXTRAFILES"] = strings.Join(extraFiles, ":")

		if !settings.Ccache.NoDistcc {
			env["CCACHE_PREFIX"] = "distcc"
		}
	}

	searchPath := append(ccachePath, prefixBinDirs(c)...)
	if c.Staging() {
		searchPath = append(searchPath, basePath...)
	} else {
		for i, entry := range searchPath {
			searchPath[i] = filepath.Clean(settings.Paths.Assembly + entry)
		}
		for _, entry := range strings.Split(host.Path, ":") {
			if entry != "" {
				searchPath = append(searchPath, entry)
			}
		}
	}
	env["PATH"] = strings.Join(searchPath, ":")

	if c.BuildMode() == component.Bootstrap {
		env["DESTDIR"] = c.Install
	} else {
		env["DESTDIR"] = "/" + filepath.Base(c.Install)
	}
	env["PREFIX"] = c.InstallPrefix()

	jobs := c.MaxJobs
	if jobs <= 0 {
		jobs = settings.Build.MaxJobs
	}
	env["MAKEFLAGS"] = "-j" + strconv.Itoa(jobs)

	env["TERM"] = "dumb"
	env["SHELL"] = "/bin/sh"
	env["USER"] = BuildUser
	env["USERNAME"] = BuildUser
	env["LOGNAME"] = BuildUser
	env["LC_ALL"] = "C"
	env["HOME"] = BuildHome

	arch := settings.Build.Arch
	env["TARGET"] = TargetTriple(arch, settings.Build.TargetVendor)
	env["TARGET_STAGE1"] = TargetTriple(arch, settings.Build.BootstrapVendor)
	env["ASSEMBLE_ARCH"] = arch

	return env
}

// TargetTriple returns "<cpu>-<vendor>-linux-gnu<abi>" for arch. The
// 32-bit x86 alias maps to i686 and ARM architectures get an eabi
// suffix.
func TargetTriple(arch, vendor string) string {
	cpu := arch
	if arch == "x86_32" {
		cpu = "i686"
	}
	abi := ""
	if strings.HasPrefix(arch, "arm") {
		abi = "eabi"
	}
	return cpu + "-" + vendor + "-linux-gnu" + abi
}

// prefixBinDirs returns the bin directory of c's own prefix and of
// every distinct dependency prefix, sorted.
func prefixBinDirs(c *component.Component) []string {
	distinct := map[string]bool{filepath.Join(c.InstallPrefix(), "bin"): true}
	for _, dependency := range c.Dependencies {
		if dependency.Prefix != "" {
			distinct[filepath.Join(dependency.Prefix, "bin")] = true
		}
	}

	dirs := make([]string, 0, len(distinct))
	for dir := range distinct {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}
