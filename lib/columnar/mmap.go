// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package columnar

import (
	"fmt"
	"io"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// OpenMapped opens the container file at path through a read-only
// memory map. Column reads copy straight out of the page cache. The
// caller must Close the reader, after which slices it returned remain
// valid because every read copies.
func OpenMapped(path string) (*Reader, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}
	if stat.Size == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: empty container", path)
	}
	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	// The mapping holds its own reference to the file.
	unix.Close(fd)
	if err != nil {
		return nil, fmt.Errorf("memory-mapping %s: %w", path, err)
	}

	mapped := &mappedFile{data: data}
	reader, err := NewReader(mapped)
	if err != nil {
		mapped.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if size := reader.TotalSize(); size != stat.Size {
		mapped.Close()
		return nil, fmt.Errorf("%s: container is %d bytes, index describes %d", path, stat.Size, size)
	}
	reader.closer = mapped
	return reader, nil
}

// mappedFile is an io.ReaderAt over a read-only mapping.
type mappedFile struct {
	data []byte
}

func (m *mappedFile) ReadAt(p []byte, off int64) (count int, err error) {
	if m.data == nil {
		return 0, fmt.Errorf("read from closed mapping")
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	// An I/O error under the mapping (truncation, a failing disk)
	// surfaces as SIGBUS; turn it into an error.
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("page fault reading mapping at offset %d: %v", off, r)
		}
	}()

	count = copy(p, m.data[off:])
	if count < len(p) {
		return count, io.EOF
	}
	return count, nil
}

func (m *mappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("unmapping container: %w", err)
	}
	return nil
}
