// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the duetprep binary.
//
// [Version], [Commit], and [Date] are injected at build time via
// -ldflags -X. When they are not injected, [Commit] falls back to the
// VCS revision recorded by the Go toolchain in the binary's build info.
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-02-10T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Short] -- just the version number
package version
