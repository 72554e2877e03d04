// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "assemble",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "build",
				Run: func(args []string) error {
					called = "build"
					receivedArgs = args
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"build", "zlib"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "build" {
		t.Errorf("dispatched to %q, want %q", called, "build")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "zlib" {
		t.Errorf("args = %v, want [zlib]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var configPath string
	var target string

	command := &Command{
		Name: "build",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "settings file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute([]string{"--config", "/etc/assemble.yaml", "zlib"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if configPath != "/etc/assemble.yaml" {
		t.Errorf("configPath = %q", configPath)
	}
	if target != "zlib" {
		t.Errorf("target = %q, want zlib", target)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "build",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			flagSet.Bool("dry-run", false, "print commands only")
			flagSet.String("config", "", "settings file")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--dyr-run"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --dry-run") {
		t.Errorf("error = %q, want suggestion for --dry-run", err)
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err)
	}

	err = command.Execute([]string{"--zzzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion for a distant flag", err)
	}
}

func TestCommand_Execute_UnknownSubcommand(t *testing.T) {
	root := &Command{
		Name: "assemble",
		Subcommands: []*Command{
			{Name: "checkout"},
			{Name: "cache-key"},
			{Name: "version"},
		},
	}

	err := root.Execute([]string{"chekout"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "checkout"`) {
		t.Errorf("error = %v, want suggestion for checkout", err)
	}

	err = root.Execute([]string{"zzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion for distant input", err)
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		var buf bytes.Buffer
		ran := false
		command := &Command{
			Name:        "assemble",
			Description: "Build components from source.",
			Output:      &buf,
			Subcommands: []*Command{
				{Name: "build", Summary: "Build one component", Run: func([]string) error { ran = true; return nil }},
			},
			Examples: []Example{{Description: "Build zlib", Command: "assemble build zlib"}},
		}
		if err := command.Execute([]string{helpArg}); err != nil {
			t.Errorf("Execute(%q) error: %v", helpArg, err)
		}
		if ran {
			t.Errorf("Execute(%q) ran a subcommand", helpArg)
		}
		for _, want := range []string{"Build components from source.", "Usage:\n  assemble <command> [flags]", "build", "Build one component", "# Build zlib"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("help for %q missing %q:\n%s", helpArg, want, buf.String())
			}
		}
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var buf bytes.Buffer
	root := &Command{
		Name:        "assemble",
		Output:      &buf,
		Subcommands: []*Command{{Name: "build"}},
	}
	if err := root.Execute(nil); err == nil {
		t.Error("Execute(nil) = nil, want subcommand required")
	}
	if !strings.Contains(buf.String(), "Commands:") {
		t.Errorf("help not printed:\n%s", buf.String())
	}
}

func TestCommand_SubcommandHelpPath(t *testing.T) {
	var buf bytes.Buffer
	root := &Command{
		Name:   "assemble",
		Output: &buf,
		Subcommands: []*Command{{
			Name:  "env",
			Usage: "",
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("env", pflag.ContinueOnError)
				flagSet.Bool("verbose", false, "debug logging")
				return flagSet
			},
			Run: func([]string) error { return nil },
		}},
	}
	if err := root.Execute([]string{"env", "--help"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"assemble env [flags]", "--verbose"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help missing %q:\n%s", want, buf.String())
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"build", "", 5},
		{"build", "build", 0},
		{"biuld", "build", 2},
		{"checkout", "chekout", 1},
		{"env", "envs", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestErrors(t *testing.T) {
	exit := &ExitError{Code: 1}
	if exit.ExitCode() != 1 || !exit.Silent() {
		t.Errorf("ExitError = %+v", exit)
	}

	validation := Validation("usage: assemble build <component>")
	if validation.ExitCode() != 2 || validation.Error() != "usage: assemble build <component>" {
		t.Errorf("Validation = %v (code %d)", validation, validation.ExitCode())
	}

	cause := errors.New("component \"zlb\" is not defined")
	notFound := &ToolError{Category: CategoryNotFound, Err: cause}
	if !errors.Is(notFound, cause) || notFound.ExitCode() != 3 {
		t.Errorf("NotFound = %v (code %d)", notFound, notFound.ExitCode())
	}
	if (&ToolError{Category: "other", Err: cause}).ExitCode() != 1 {
		t.Error("unknown category should exit 1")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, false)
	logger.Debug("hidden")
	logger.Info("mirrored", "component", "zlib")
	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("debug record written without verbose")
	}
	if !strings.Contains(output, `"component":"zlib"`) {
		t.Errorf("non-terminal output is not JSON: %q", output)
	}

	buf.Reset()
	newLogger(&buf, true, true).Debug("shown", "component", "zlib")
	if !strings.Contains(buf.String(), "component=zlib") {
		t.Errorf("terminal output is not text: %q", buf.String())
	}
}
