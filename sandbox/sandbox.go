// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bureau-foundation/assemble/lib/component"
	"github.com/bureau-foundation/assemble/lib/config"
)

// launcherPath is the only environment the container launcher process
// itself receives. The command's environment is passed through the
// containerizer.
const launcherPath = "PATH=/usr/local/bin:/usr/bin:/bin"

// ExecutorConfig holds configuration for creating an Executor.
type ExecutorConfig struct {
	// Settings are the global build settings.
	Settings *config.Config

	// Containerizer builds container command lines. Defaults to
	// [NewBwrapContainerizer].
	Containerizer Containerizer

	// Host supplies the host PATH and file existence checks used by
	// the environment builder. Defaults to [ProcessHost].
	Host *Host

	// Logger for executor operations.
	Logger *slog.Logger
}

// Executor runs build commands inside a container and records them in
// per-component build logs.
type Executor struct {
	settings      *config.Config
	containerizer Containerizer
	host          Host
	logger        *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}

	containerizer := cfg.Containerizer
	if containerizer == nil {
		containerizer = NewBwrapContainerizer()
	}
	host := ProcessHost()
	if cfg.Host != nil {
		host = *cfg.Host
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		settings:      cfg.Settings,
		containerizer: containerizer,
		host:          host,
		logger:        logger,
	}, nil
}

// LogPath returns the build log of c: "<artifacts>/<cache key>.build-log".
func (e *Executor) LogPath(c *component.Component) string {
	return filepath.Join(e.settings.Paths.Artifacts, c.Cache+".build-log")
}

// Cmdline returns the full argument vector that runs command for c,
// planning (and creating) its bind mounts on the way.
func (e *Executor) Cmdline(c *component.Component, command string) ([]string, error) {
	binds, err := PlanBinds(c, e.settings)
	if err != nil {
		return nil, err
	}
	return e.cmdline(c, command, binds)
}

func (e *Executor) cmdline(c *component.Component, command string, binds []Bind) ([]string, error) {
	containerConfig := ContainerConfigFor(c, e.settings, binds)
	env := BuildEnvironment(c, e.settings, e.host)

	argv, err := e.containerizer.Cmdline(containerConfig, env, []string{"sh", "-c", command})
	if err != nil {
		return nil, fmt.Errorf("building container command for %s: %w", c.Name, err)
	}
	return argv, nil
}

// DryRun returns the argument vector Run would execute. Nothing is
// run and nothing is created: not the build log, not the bind mount
// directories.
func (e *Executor) DryRun(c *component.Component, command string) ([]string, error) {
	return e.cmdline(c, command, BindPlan(c, e.settings))
}

// Run executes command for c and blocks until it exits.
//
// The build log is opened for append. It receives a "# # <command>"
// line, the resolved argument vector one element per line, and then
// the command's combined stdout and stderr. A non-zero exit appends
// "# exit status N" and returns a *CommandError; the build and install
// trees are left as they are.
func (e *Executor) Run(ctx context.Context, c *component.Component, command string) error {
	if c.Cache == "" {
		return fmt.Errorf("%s: cache key must be assigned before running commands", c.Name)
	}

	argv, err := e.Cmdline(c, command)
	if err != nil {
		return err
	}

	logPath := e.LogPath(c)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("creating artifacts directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening build log: %w", err)
	}
	defer logFile.Close()

	if _, err := fmt.Fprintf(logFile, "# # %s\n%s\n", command, strings.Join(argv, "\n")); err != nil {
		return fmt.Errorf("writing build log %s: %w", logPath, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = []string{launcherPath}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	e.logger.Debug("running build command",
		"component", c.Name,
		"command", command,
		"log", logPath,
	)

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return fmt.Errorf("%s: starting build command: %w", c.Name, runErr)
	}

	commandError := &CommandError{
		Component: c.Name,
		Argv:      argv,
		LogPath:   logPath,
		Code:      exitErr.ExitCode(),
	}
	commandError.Dir, _ = os.Getwd()
	fmt.Fprintf(logFile, "# exit status %d\n", commandError.Code)

	e.logger.Error("build command failed",
		"component", c.Name,
		"dir", commandError.Dir,
		"argv", argv,
		"log", logPath,
		"exit_code", commandError.Code,
	)
	return commandError
}

// Cleanup removes c's build and install trees. Call it only after a
// successful build: failed trees are kept for inspection.
func (e *Executor) Cleanup(c *component.Component) error {
	var errs []error
	for _, dir := range []string{c.Build, c.Install} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

// CommandError is a build command that exited non-zero.
type CommandError struct {
	Component string
	Dir       string
	Argv      []string
	LogPath   string
	Code      int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: command exited with code %d (log: %s)", e.Component, e.Code, e.LogPath)
}

// ExitCode returns the command's exit code so callers can propagate it.
func (e *CommandError) ExitCode() int {
	return e.Code
}

// IsCommandError checks if an error is a CommandError and returns the code.
func IsCommandError(err error) (int, bool) {
	var commandError *CommandError
	if errors.As(err, &commandError) {
		return commandError.Code, true
	}
	return 0, false
}
