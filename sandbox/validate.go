// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/assemble/lib/config"
)

// ValidationResult holds the result of a validation check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Validator performs pre-flight validation for sandboxed builds.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		results: make([]ValidationResult, 0),
	}
}

// Results returns all validation results.
func (v *Validator) Results() []ValidationResult {
	return v.results
}

// HasErrors returns true if any validation failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
	})
}

func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
		Warning: true,
	})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  false,
		Message: message,
	})
	v.errors++
}

// ValidateAll runs every check relevant to building with settings.
func (v *Validator) ValidateAll(settings *config.Config) {
	v.ValidateSettings(settings)
	v.ValidateBwrap()
	v.ValidateUserNamespaces()
	v.ValidateTool("git")
	v.ValidateTool("cp")
	v.ValidateRoots(settings)
	v.ValidateCcache(settings)
	v.ValidateNullDevice(settings.Paths.Assembly, os.Geteuid() == 0)
}

// ValidateSettings records the result of [config.Config.Validate].
func (v *Validator) ValidateSettings(settings *config.Config) {
	if err := settings.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			v.fail("config", line)
		}
		return
	}
	v.pass("config", fmt.Sprintf("arch %s, %d job(s)", settings.Build.Arch, settings.Build.MaxJobs))
}

// ValidateBwrap checks that bubblewrap is available.
func (v *Validator) ValidateBwrap() {
	path, err := BwrapPath()
	if err != nil {
		v.fail("bwrap", "bubblewrap not found in standard locations or PATH")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		v.fail("bwrap", fmt.Sprintf("cannot stat %s: %v", path, err))
		return
	}
	if info.Mode()&0111 == 0 {
		v.fail("bwrap", fmt.Sprintf("%s is not executable", path))
		return
	}

	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		v.warn("bwrap", fmt.Sprintf("found at %s but --version failed", path))
		return
	}
	v.pass("bwrap", fmt.Sprintf("available: %s (%s)", path, strings.TrimSpace(string(output))))
}

// ValidateUserNamespaces checks that user namespaces are enabled.
func (v *Validator) ValidateUserNamespaces() {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		if os.IsNotExist(err) {
			v.pass("userns", "user namespaces supported (no clone restriction)")
			return
		}
		v.warn("userns", fmt.Sprintf("cannot check user namespace support: %v", err))
		return
	}

	if strings.TrimSpace(string(data)) == "0" {
		v.fail("userns", "unprivileged user namespaces are disabled (set kernel.unprivileged_userns_clone=1)")
		return
	}
	v.pass("userns", "user namespaces enabled")
}

// ValidateTool checks that an executable is on PATH.
func (v *Validator) ValidateTool(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		v.fail(name, fmt.Sprintf("%s not found on PATH", name))
		return
	}
	v.pass(name, fmt.Sprintf("available: %s", path))
}

// ValidateRoots checks the configured directory roots. A missing root
// is only a warning because it is created on first use.
func (v *Validator) ValidateRoots(settings *config.Config) {
	roots := []struct {
		name string
		path string
	}{
		{"assembly", settings.Paths.Assembly},
		{"gits", settings.Paths.Gits},
		{"caches", settings.Paths.Caches},
		{"artifacts", settings.Paths.Artifacts},
	}
	for _, root := range roots {
		v.validateDirectory(root.name, root.path)
	}
}

func (v *Validator) validateDirectory(name, path string) {
	if path == "" {
		v.fail(name, "path is required")
		return
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		v.fail(name, fmt.Sprintf("cannot resolve path: %v", err))
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			v.warn(name, fmt.Sprintf("does not exist yet: %s", absPath))
		} else {
			v.fail(name, fmt.Sprintf("cannot access: %v", err))
		}
		return
	}
	if !info.IsDir() {
		v.fail(name, fmt.Sprintf("not a directory: %s", absPath))
		return
	}
	v.pass(name, fmt.Sprintf("exists: %s", absPath))
}

// ValidateCcache checks the compiler cache setup.
func (v *Validator) ValidateCcache(settings *config.Config) {
	if settings.Ccache.Disabled {
		v.pass("ccache", "disabled")
		return
	}
	v.validateDirectory("ccache_dir", settings.Paths.CcacheDir)

	if _, err := os.Stat(ccacheBinDir); err != nil {
		v.warn("ccache", fmt.Sprintf("%s not found on the host (compiler wrappers may be missing)", ccacheBinDir))
		return
	}
	v.pass("ccache", fmt.Sprintf("wrappers found in %s", ccacheBinDir))
}

// ValidateNullDevice checks that the assembly null device exists or
// can be created.
func (v *Validator) ValidateNullDevice(assembly string, privileged bool) {
	path := filepath.Join(assembly, "dev", "null")
	info, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			v.fail("devnull", fmt.Sprintf("cannot access %s: %v", path, err))
			return
		}
		if privileged {
			v.pass("devnull", fmt.Sprintf("%s will be created", path))
			return
		}
		v.fail("devnull", fmt.Sprintf("%s is missing and creating it requires root", path))
		return
	}

	if info.Mode()&os.ModeCharDevice == 0 {
		v.warn("devnull", fmt.Sprintf("%s exists but is not a character device", path))
		return
	}
	v.pass("devnull", fmt.Sprintf("exists: %s", path))
}

// PrintResults writes validation results to a writer.
func (v *Validator) PrintResults(w io.Writer) {
	for _, r := range v.results {
		var prefix string
		if r.Passed {
			if r.Warning {
				prefix = "⚠"
			} else {
				prefix = "✓"
			}
		} else {
			prefix = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}

	fmt.Fprintln(w)
	if v.HasErrors() {
		fmt.Fprintf(w, "Validation failed with %d error(s)\n", v.errors)
	} else {
		fmt.Fprintln(w, "Ready to build")
	}
}
