// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run(), where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// ExitError signals a non-zero exit without printing an extra error
// message. The command is expected to have written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Exit ends the process for the result of run(). A nil error exits 0,
// an error carrying ExitCode() exits silently with that code, and
// anything else goes through Fatal.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	Fatal(err)
}
