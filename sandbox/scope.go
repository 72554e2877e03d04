// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
)

// ErrScopeActive is returned by [Enter] while another scope in this
// process is still open.
var ErrScopeActive = errors.New("a sandbox scope is already active in this process")

// scopeActive guards the process-wide working directory and
// environment a Scope mutates.
var scopeActive atomic.Bool

// PrivilegeError reports a failure of an operation that needs elevated
// rights, such as creating a device node.
type PrivilegeError struct {
	Op   string
	Path string
	Err  error
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("%s %s: %v (requires root or CAP_MKNOD)", e.Op, e.Path, e.Err)
}

func (e *PrivilegeError) Unwrap() error {
	return e.Err
}

// ScopeConfig holds configuration for [Enter].
type ScopeConfig struct {
	Settings  *config.Config
	Component *component.Component

	// Host defaults to [ProcessHost], captured before anything changes.
	Host *Host

	// SwapEnvironment replaces the process environment with the build
	// environment for the lifetime of the scope. Commands run through
	// an [Executor] receive the environment explicitly and do not need
	// it.
	SwapEnvironment bool

	Logger *slog.Logger
}

// Scope is the process-wide context of one build attempt. It owns the
// working directory and, optionally, the environment until Close.
type Scope struct {
	originalDir string
	snapshot    EnvironmentSnapshot
	environment Environment
	logger      *slog.Logger
	closed      bool
}

// Enter prepares the assembly root for one build attempt and changes
// into it.
//
// It records the working directory and the full environment, computes
// the build environment, creates the assembly dev, proc and tmp
// directories and a null device node (character 1:3, mode 0666) if
// none exists, optionally swaps the process environment, and finally
// changes into the assembly root. Scopes do not nest. Close must be
// called on every path; partial setup is undone before Enter returns
// an error.
func Enter(cfg ScopeConfig) (*Scope, error) {
	if cfg.Settings == nil || cfg.Component == nil {
		return nil, fmt.Errorf("scope requires settings and a component")
	}
	if !scopeActive.CompareAndSwap(false, true) {
		return nil, ErrScopeActive
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	host := ProcessHost()
	if cfg.Host != nil {
		host = *cfg.Host
	}

	originalDir, err := os.Getwd()
	if err != nil {
		scopeActive.Store(false)
		return nil, fmt.Errorf("recording working directory: %w", err)
	}

	scope := &Scope{
		originalDir: originalDir,
		snapshot:    CaptureEnvironment(),
		environment: BuildEnvironment(cfg.Component, cfg.Settings, host),
		logger:      logger,
	}

	if err := scope.setup(cfg); err != nil {
		return nil, errors.Join(err, scope.Close())
	}

	logger.Debug("entered sandbox scope",
		"component", cfg.Component.Name,
		"assembly", cfg.Settings.Paths.Assembly,
		"swap_environment", cfg.SwapEnvironment,
	)
	return scope, nil
}

func (s *Scope) setup(cfg ScopeConfig) error {
	assembly := cfg.Settings.Paths.Assembly
	for _, dir := range []string{"dev", "proc", "tmp"} {
		path := filepath.Join(assembly, dir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	if err := ensureNullDevice(filepath.Join(assembly, "dev", "null")); err != nil {
		return err
	}

	if cfg.SwapEnvironment {
		if err := s.environment.apply(); err != nil {
			return err
		}
	}

	if err := os.Chdir(assembly); err != nil {
		return fmt.Errorf("changing to assembly root: %w", err)
	}
	return nil
}

// ensureNullDevice creates a world read/write null character device at
// path unless something already exists there.
func ensureNullDevice(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := unix.Mknod(path, unix.S_IFCHR|0666, int(unix.Mkdev(1, 3))); err != nil {
		return &PrivilegeError{Op: "mknod", Path: path, Err: err}
	}
	// The umask applies to mknod.
	if err := os.Chmod(path, 0666); err != nil {
		return &PrivilegeError{Op: "chmod", Path: path, Err: err}
	}
	return nil
}

// Environment returns the build environment computed on entry.
func (s *Scope) Environment() Environment {
	return s.environment
}

// Close restores the environment snapshot and the working directory
// recorded on entry and releases the process-wide scope. Calling it
// more than once is a no-op.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer scopeActive.Store(false)

	var errs []error
	if err := s.snapshot.Restore(); err != nil {
		errs = append(errs, err)
	}
	if err := os.Chdir(s.originalDir); err != nil {
		errs = append(errs, fmt.Errorf("restoring working directory %s: %w", s.originalDir, err))
	}
	return errors.Join(errs...)
}

// apply replaces the process environment with exactly e.
func (e Environment) apply() error {
	os.Clearenv()
	for _, key := range e.Sorted() {
		if err := os.Setenv(key, e[key]); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}

// EnvironmentSnapshot is a full copy of the process environment. A
// variable set to the empty string is present in the snapshot; an
// unset variable is absent.
type EnvironmentSnapshot map[string]string

// CaptureEnvironment snapshots the current process environment.
func CaptureEnvironment() EnvironmentSnapshot {
	snapshot := make(EnvironmentSnapshot)
	for _, entry := range os.Environ() {
		key, value, _ := strings.Cut(entry, "=")
		if key == "" {
			continue
		}
		snapshot[key] = value
	}
	return snapshot
}

// Restore makes the process environment equal to the snapshot:
// variables absent from it are unset and every recorded variable is
// set to its recorded value, including empty ones.
func (s EnvironmentSnapshot) Restore() error {
	var errs []error
	for key := range CaptureEnvironment() {
		if _, ok := s[key]; !ok {
			if err := os.Unsetenv(key); err != nil {
				errs = append(errs, fmt.Errorf("unsetting %s: %w", key, err))
			}
		}
	}
	for key, value := range s {
		if err := os.Setenv(key, value); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
