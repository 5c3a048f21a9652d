// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit status.
// Commands that already reported their outcome (such as a failed
// verification) return one so no extra "error:" line is printed.
type exitCoder interface {
	ExitCode() int
}

// ExitCode reports the exit status for err, writing "error: err" to w
// unless err carries its own code. A nil error yields 0.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}

// Exit terminates the process with the status ExitCode assigns to err.
func Exit(err error) {
	os.Exit(ExitCode(os.Stderr, err))
}
