// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that choose the process exit code.
type exitCoder interface {
	ExitCode() int
}

// Silent is implemented by errors whose command already wrote its own
// output. Fatal exits without printing them.
type Silent interface {
	Silent() bool
}

// ExitCode returns the exit status for err: 0 for nil, the error's own
// code when any error in its chain has an ExitCode method reporting a
// non-zero code, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) && coder.ExitCode() != 0 {
		return coder.ExitCode()
	}
	return 1
}

// Report writes "error: err" to w unless err is silent.
func Report(w io.Writer, err error) {
	var silent Silent
	if errors.As(err, &silent) && silent.Silent() {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// Fatal reports err to stderr and exits with [ExitCode]. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}
