// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework of the duetprep binary.
//
// A [Command] tree dispatches on the first positional argument, parses
// flags with spf13/pflag, and prints structured help with examples.
// Unknown commands and flags get a "did you mean" suggestion based on
// edit distance. [NewCommandLogger] picks a human or machine log
// format depending on whether stderr is a terminal, and [JSONOutput]
// adds a --json flag to commands that print results.
package cli
