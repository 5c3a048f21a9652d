// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the duetprep binary.
// It is the one place outside the CLI packages that writes raw output:
// error reporting to stderr before or after the structured logger
// exists, and the final process exit.
package process
