// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the logger for a command run. Format "auto"
// uses a text handler when stderr is a terminal and a JSON handler
// when it is piped or redirected; "text" and "json" force one.
//
// Callers scope the logger with command context:
//
//	logger := cli.NewCommandLogger(slog.LevelInfo, "auto").With("command", "export")
func NewCommandLogger(level slog.Level, format string) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level, format)
}

func newLogger(w io.Writer, terminal bool, level slog.Level, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	useText := format == "text" || (format != "json" && terminal)
	if useText {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
