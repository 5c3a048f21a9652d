// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile replaces files so that readers never observe a
// partial write. Data is written to a temporary file in the target
// directory, fsynced, and renamed over the destination; the parent
// directory is then synced so the rename survives power loss.
//
// Every artifact duetprep produces (vocabulary, IDF table, columnar
// containers) goes through this package. A run that dies halfway
// leaves the previous artifacts intact rather than a truncated file
// that a training job would happily read.
package atomicfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path with data. The parent directory
// is created if it does not exist.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	return Write(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Write atomically replaces path with whatever write produces. The
// writer passed to write is buffered; write must not retain it. If
// write returns an error the temporary file is removed and path is
// left untouched.
func Write(path string, mode os.FileMode, write func(w io.Writer) error) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", directory, err)
	}

	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryPath := file.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(temporaryPath)
		}
	}()

	buffered := bufio.NewWriterSize(file, 1<<20)
	if err := write(buffered); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := buffered.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}

	// Sync before close so the rename publishes durable data.
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing temporary file for %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temporary file for %s: %w", path, err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	success = true

	// Sync the parent directory so the rename itself is durable.
	parentDirectory, err := os.Open(directory)
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}
