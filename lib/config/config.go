// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the global build settings. It is populated once by
// [Load] or [LoadFile] before any build begins and must be treated as
// read-only afterwards: every consumer receives it as an explicit
// argument rather than reading process state.
type Config struct {
	// Paths configures the directory roots.
	Paths PathsConfig `yaml:"paths"`

	// Build configures target architecture and parallelism.
	Build BuildConfig `yaml:"build"`

	// Ccache configures the compiler cache exposed to build commands.
	Ccache CcacheConfig `yaml:"ccache"`

	// Git configures where upstream source repositories are fetched from.
	Git GitConfig `yaml:"git"`

	// Cache configures the artifact cache.
	Cache CacheConfig `yaml:"cache"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Assembly is the sandbox root. Each concurrent build needs its own.
	Assembly string `yaml:"assembly"`

	// Gits is the mirror root holding one bare mirror per upstream repo.
	Gits string `yaml:"gits"`

	// Caches is where cache markers (and optional archives) are written.
	Caches string `yaml:"caches"`

	// Artifacts is where per-component build logs are written.
	Artifacts string `yaml:"artifacts"`

	// CcacheDir is the host directory holding per-component ccache trees.
	CcacheDir string `yaml:"ccache_dir"`
}

// BuildConfig configures the target and job parallelism.
type BuildConfig struct {
	// Arch is the target architecture name (x86_64, x86_32, armv7lhf, ...).
	Arch string `yaml:"arch"`

	// MaxJobs is the default make parallelism when a component does not
	// override it.
	MaxJobs int `yaml:"max_jobs"`

	// TargetVendor is the vendor field of the final target triple.
	TargetVendor string `yaml:"target_vendor"`

	// BootstrapVendor is the vendor field of the stage 1 target triple.
	BootstrapVendor string `yaml:"bootstrap_vendor"`
}

// CcacheConfig configures the compiler cache.
type CcacheConfig struct {
	// Disabled turns off ccache entirely: no PATH entry, no bind mount.
	Disabled bool `yaml:"disabled"`

	// NoDistcc stops ccache from delegating misses to distcc.
	NoDistcc bool `yaml:"no_distcc"`

	// ExtraFiles are host files that invalidate the cache when they
	// change. Only files that exist are exported.
	ExtraFiles []string `yaml:"extra_files"`
}

// GitConfig configures upstream repository access.
type GitConfig struct {
	// RemoteBase is prepended to a repository name to form its clone
	// URL. The ".git" suffix is appended.
	RemoteBase string `yaml:"remote_base"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	// ArchiveArtifacts additionally stores a zstd-compressed tarball of
	// the install tree next to the cache marker.
	ArchiveArtifacts bool `yaml:"archive_artifacts"`
}

// Default returns the default configuration. These values are the base
// a config file is merged onto.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "assemble")

	return &Config{
		Paths: PathsConfig{
			Assembly:  filepath.Join(defaultRoot, "assembly"),
			Gits:      filepath.Join(defaultRoot, "gits"),
			Caches:    filepath.Join(defaultRoot, "caches"),
			Artifacts: filepath.Join(defaultRoot, "artifacts"),
			CcacheDir: filepath.Join(defaultRoot, "ccache"),
		},
		Build: BuildConfig{
			Arch:            HostArch(),
			MaxJobs:         runtime.NumCPU(),
			TargetVendor:    "baserock",
			BootstrapVendor: "bootstrap",
		},
		Ccache: CcacheConfig{
			ExtraFiles: []string{
				"/baserock/binutils.meta",
				"/baserock/eglibc.meta",
				"/baserock/gcc.meta",
			},
		},
		Git: GitConfig{
			RemoteBase: "git://git.baserock.org/delta/",
		},
	}
}

// HostArch maps the Go architecture of the running binary to the
// architecture names used in target triples.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86_32"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7lhf"
	default:
		return runtime.GOARCH
	}
}

// Load loads configuration from the ASSEMBLE_CONFIG environment variable.
// There is no discovery: if the variable is unset, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("ASSEMBLE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ASSEMBLE_CONFIG environment variable not set; " +
			"set it to the path of your assemble.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies
// ${VAR} expansion to paths, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.Assembly = expandVars(c.Paths.Assembly, vars)
	c.Paths.Gits = expandVars(c.Paths.Gits, vars)
	c.Paths.Caches = expandVars(c.Paths.Caches, vars)
	c.Paths.Artifacts = expandVars(c.Paths.Artifacts, vars)
	c.Paths.CcacheDir = expandVars(c.Paths.CcacheDir, vars)
	for i, file := range c.Ccache.ExtraFiles {
		c.Ccache.ExtraFiles[i] = expandVars(file, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"paths.assembly", c.Paths.Assembly},
		{"paths.gits", c.Paths.Gits},
		{"paths.caches", c.Paths.Caches},
		{"paths.artifacts", c.Paths.Artifacts},
		{"build.arch", c.Build.Arch},
		{"build.target_vendor", c.Build.TargetVendor},
		{"build.bootstrap_vendor", c.Build.BootstrapVendor},
	}
	for _, field := range required {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", field.name))
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"paths.assembly", c.Paths.Assembly},
		{"paths.gits", c.Paths.Gits},
		{"paths.caches", c.Paths.Caches},
		{"paths.artifacts", c.Paths.Artifacts},
	} {
		if field.value != "" && !filepath.IsAbs(field.value) {
			errs = append(errs, fmt.Errorf("%s must be absolute, got %q", field.name, field.value))
		}
	}

	if !c.Ccache.Disabled && c.Paths.CcacheDir == "" {
		errs = append(errs, fmt.Errorf("paths.ccache_dir is required unless ccache.disabled is set"))
	}

	if c.Build.MaxJobs < 1 {
		errs = append(errs, fmt.Errorf("build.max_jobs must be >= 1, got %d", c.Build.MaxJobs))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured root directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Assembly,
		c.Paths.Gits,
		c.Paths.Caches,
		c.Paths.Artifacts,
	}
	if !c.Ccache.Disabled {
		paths = append(paths, c.Paths.CcacheDir)
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
