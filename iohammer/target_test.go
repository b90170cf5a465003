// target_test.go: target discovery tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package iohammer

import (
	"os"
	"testing"
)

func TestOpenTargetRegularFileUsesStatSize(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "iohammer-regular-*")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, 4096)); err != nil {
		t.Fatal(err)
	}

	tgt, err := OpenTarget(f.Name(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Size != 4096 {
		t.Fatalf("Size = %d, want 4096", tgt.Size)
	}

	g, err := tgt.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
}

func TestOpenTargetDirectoryPreallocatesAndUnlinks(t *testing.T) {
	dir := t.TempDir()
	const size = int64(preallocChunk + 100)

	tgt, err := OpenTarget(dir, size)
	if err != nil {
		t.Fatal(err)
	}
	if tgt.Size != size {
		t.Fatalf("Size = %d, want %d", tgt.Size, size)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the temp file to be unlinked, found %v", entries)
	}

	f, err := tgt.Open()
	if err != nil {
		t.Fatalf("Open after unlink: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 16)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatalf("read preallocated region: %v", err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected preallocated region to be zeroed, got %v", buf)
		}
	}
}

func TestOpenTargetDirectoryRequiresPositiveSize(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenTarget(dir, 0); err == nil {
		t.Fatal("expected an error when no size is given for a directory target")
	}
}
