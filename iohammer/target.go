// target.go: iohammer target discovery
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package iohammer

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

// preallocChunk is the write size used to pre-allocate a temporary target
// file, per spec.md §4.7: "pre-allocate by writing zeroes in 64 KiB
// chunks (with a final tail of single-byte writes for the residual)".
const preallocChunk = 64 * 1024

// Target describes the file (or file-like device) workers issue I/O
// against: its usable size in bytes, and a factory each worker calls once
// at startup to get its own descriptor (see Open for when workers share a
// file offset).
type Target struct {
	Size int64
	open func() (*os.File, error)
}

// Open returns a descriptor for one worker. For a regular file or device,
// every worker reopens the same path independently. For a directory
// target, every worker instead dups the single already-unlinked descriptor
// obtained at discovery time, since the path backing it no longer exists to
// reopen; dup'd descriptors share one kernel file offset across workers, so
// doIO issues every read/write as a positioned ReadAt/WriteAt rather than
// relying on that shared offset.
func (t Target) Open() (*os.File, error) {
	return t.open()
}

// OpenTarget resolves path into a Target, per spec.md §4.7's discovery
// rules:
//   - a regular file or device uses its reported size, falling back to a
//     seek-to-end probe when stat reports zero (common for block/char
//     devices, whose size isn't visible through stat);
//   - a directory gets a temporary file of exactly size bytes,
//     pre-allocated by zero-writes, fsync'd, then unlinked while the
//     discovery descriptor stays open — workers dup that descriptor
//     rather than reopening a path that no longer exists.
//
// size is only consulted for the directory case, where there is no
// existing size to discover.
func OpenTarget(path string, size int64) (Target, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Target{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return createTempTarget(path, size)
	}

	sz := info.Size()
	if sz <= 0 {
		sz = seekSize(path)
	}
	return Target{
		Size: sz,
		open: func() (*os.File, error) { return os.OpenFile(path, os.O_RDWR, 0) },
	}, nil
}

// seekSize probes a block or character device's size by seeking to its
// end, since os.Stat reports 0 for such files.
func seekSize(path string) int64 {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return 0
	}
	defer f.Close()
	sz, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	return sz
}

func createTempTarget(dir string, size int64) (Target, error) {
	if size <= 0 {
		return Target{}, fmt.Errorf("target %s is a directory: need a positive size to create a temporary file", dir)
	}

	f, err := os.CreateTemp(dir, "iohammer-*")
	if err != nil {
		return Target{}, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	path := f.Name()

	if err := preallocate(f, size); err != nil {
		f.Close()
		os.Remove(path)
		return Target{}, fmt.Errorf("preallocate %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return Target{}, fmt.Errorf("fsync %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		f.Close()
		return Target{}, fmt.Errorf("unlink %s: %w", path, err)
	}

	// f itself is deliberately never closed: it is the only thing keeping
	// the unlinked inode alive. It closes automatically at process exit.
	return Target{
		Size: size,
		open: func() (*os.File, error) {
			dupFd, err := syscall.Dup(int(f.Fd()))
			if err != nil {
				return nil, fmt.Errorf("dup temp target descriptor: %w", err)
			}
			return os.NewFile(uintptr(dupFd), f.Name()), nil
		},
	}, nil
}

func preallocate(f *os.File, size int64) error {
	zeros := make([]byte, preallocChunk)
	remaining := size
	for remaining >= preallocChunk {
		if _, err := f.Write(zeros); err != nil {
			return err
		}
		remaining -= preallocChunk
	}
	for i := int64(0); i < remaining; i++ {
		if _, err := f.Write(zeros[:1]); err != nil {
			return err
		}
	}
	return nil
}
