// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/duetprep/duetprep/lib/version.Commit=$(git rev-parse --short HEAD)"
var (
	// Version is the semantic version. Set manually for releases.
	Version = "0.1.0-dev"

	// Commit is the short git SHA of the build.
	Commit = "unknown"

	// Date is the UTC timestamp of the build.
	Date = "unknown"
)

// revision returns Commit, or the VCS revision from the embedded
// build info when Commit was not injected.
func revision() (string, bool) {
	if Commit != "unknown" {
		return Commit, false
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit, false
	}
	commit := Commit
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, dirty
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	commit, dirty := revision()
	if dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, Date)
}

// Full returns detailed version information including the Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}
