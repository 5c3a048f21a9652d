// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Command duetprep prepares query/document ranking datasets for DUET
// models. Run "duetprep --help" for the command list.
package main

import (
	"os"

	"github.com/duetprep/duetprep/cmd/duetprep/commands"
	"github.com/duetprep/duetprep/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Exit(err)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
