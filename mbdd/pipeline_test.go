// pipeline_test.go: mbdd pipeline tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mbdd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/agilira/blkio"
)

func TestRunFansOutToAllDestinations(t *testing.T) {
	data := strings.Repeat("x", 100)
	in := strings.NewReader(data)
	var out0, out1 bytes.Buffer

	rs := blkio.NewRunState()
	summary := Run(context.Background(), Config{
		BlockSize: 16,
		NumBufs:   4,
		In:        in,
		Outs:      []io.Writer{&out0, &out1},
	}, rs)

	if summary.Aborted {
		t.Fatalf("unexpected abort: %+v", summary)
	}
	if out0.String() != data || out1.String() != data {
		t.Fatalf("destinations diverged from source: out0=%d bytes, out1=%d bytes, want %d", out0.Len(), out1.Len(), len(data))
	}
	for _, d := range summary.Dests {
		if d.BytesWritten != int64(len(data)) {
			t.Errorf("dest %s wrote %d bytes, want %d", d.Name, d.BytesWritten, len(data))
		}
	}
}

func TestRunHonorsMaxBlocks(t *testing.T) {
	data := strings.Repeat("y", 1000)
	in := strings.NewReader(data)
	var out bytes.Buffer

	rs := blkio.NewRunState()
	summary := Run(context.Background(), Config{
		BlockSize: 16,
		NumBufs:   4,
		MaxBlocks: 3,
		In:        in,
		Outs:      []io.Writer{&out},
	}, rs)

	if out.Len() != 48 {
		t.Fatalf("wrote %d bytes, want 48 (3 blocks of 16)", out.Len())
	}
	if summary.Remainder != 16 {
		t.Fatalf("Remainder = %d, want 16 (exact final block)", summary.Remainder)
	}
}

func TestRunExactMultipleEOFWritesFinalFullBlock(t *testing.T) {
	// Regression: on EOF after a byte count that is an exact multiple of
	// BlockSize, the last *published* block is a genuine full block, not a
	// zero-length tail, even though finish(false) ends the run at the same
	// sequence number it would if the tail were short.
	data := strings.Repeat("w", 48) // exactly 3 blocks of 16
	in := strings.NewReader(data)
	var out bytes.Buffer

	rs := blkio.NewRunState()
	summary := Run(context.Background(), Config{
		BlockSize: 16,
		NumBufs:   4,
		In:        in,
		Outs:      []io.Writer{&out},
	}, rs)

	if out.Len() != len(data) {
		t.Fatalf("wrote %d bytes, want %d (no truncated final block)", out.Len(), len(data))
	}
	if out.String() != data {
		t.Fatalf("got %q, want %q", out.String(), data)
	}
	if summary.Remainder != 0 {
		t.Fatalf("Remainder = %d, want 0 (exactly-aligned finish)", summary.Remainder)
	}
}

func TestRunWritesPartialFinalBlock(t *testing.T) {
	data := strings.Repeat("z", 20) // 1 full block of 16 + 4-byte tail
	in := strings.NewReader(data)
	var out bytes.Buffer

	rs := blkio.NewRunState()
	summary := Run(context.Background(), Config{
		BlockSize: 16,
		NumBufs:   4,
		In:        in,
		Outs:      []io.Writer{&out},
	}, rs)

	if out.String() != data {
		t.Fatalf("got %q, want %q", out.String(), data)
	}
	if summary.Remainder != 4 {
		t.Fatalf("Remainder = %d, want 4", summary.Remainder)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errBoom }

var errBoom = errors.New("boom")

func TestRunFailsOnReadError(t *testing.T) {
	var out bytes.Buffer
	rs := blkio.NewRunState()

	summary := Run(context.Background(), Config{
		BlockSize: 16,
		NumBufs:   4,
		In:        errReader{},
		Outs:      []io.Writer{&out},
	}, rs)

	if !summary.Aborted {
		t.Fatal("expected Aborted after read error")
	}
	if rs.Err() == nil {
		t.Fatal("expected RunState.Err() to carry the read failure")
	}
}
