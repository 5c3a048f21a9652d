// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin

package columnar

// OpenMapped opens the container file at path. Platforms without mmap
// read through the file.
func OpenMapped(path string) (*Reader, error) {
	return Open(path)
}
