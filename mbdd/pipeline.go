// pipeline.go: reader -> ring -> N independent writers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package mbdd implements the mbdd pipeline: a single reader stages blocks
// through a shared ring of buffers, fanned out to destCount independent
// writers — spec.md §4.6.
package mbdd

import (
	"context"
	"fmt"
	"io"

	"github.com/agilira/blkio"
)

// DefaultNumBufs and DefaultBlockSize mirror spec.md §6's mbdd defaults
// (-b 64k -n 16).
const (
	DefaultNumBufs   = 16
	DefaultBlockSize = 64 * 1024
)

// Config parameterizes a single mbdd run.
type Config struct {
	BlockSize int
	NumBufs   int
	MaxBlocks int64 // 0 means read until EOF

	In   io.Reader
	Outs []io.Writer

	// DestNames labels each Outs entry for error messages and the summary;
	// if shorter than Outs, remaining destinations are labeled by index.
	DestNames []string

	Status *blkio.StatusLine
}

// DestSummary reports one destination's outcome.
type DestSummary struct {
	Name         string
	BytesWritten int64
	ShortWrite   bool
}

// Summary reports the outcome of a Run.
type Summary struct {
	Dests            []DestSummary
	PartialReads     int64
	AverageOccupancy float64
	Remainder        int64
	Aborted          bool
}

func destName(cfg Config, i int) string {
	if i < len(cfg.DestNames) && cfg.DestNames[i] != "" {
		return cfg.DestNames[i]
	}
	return fmt.Sprintf("dest%d", i)
}

// Run drives the reader and all writers to completion: either the reader
// exhausts MaxBlocks (if non-zero), hits EOF on In, a writer reports a
// short write, any I/O errors fatally, or rs is aborted.
func Run(ctx context.Context, cfg Config, rs *blkio.RunState) Summary {
	numWriters := len(cfg.Outs)
	ring := blkio.NewRing(cfg.NumBufs, cfg.BlockSize)
	fo := newFanout(cfg.NumBufs, numWriters)
	rs.Register(fo)

	readerDone := make(chan struct{})
	var partialReads int64

	go func() {
		defer close(readerDone)
		blocksRead := int64(0)
		for {
			if rs.Aborted() {
				return
			}
			if cfg.MaxBlocks > 0 && blocksRead >= cfg.MaxBlocks {
				rs.SetRemainder(int64(cfg.BlockSize))
				rs.SetFinished()
				fo.finish(false)
				return
			}

			idx, ok := fo.waitForSpace(ctx)
			if !ok {
				return
			}
			buf := ring.Slot(idx)
			n, short, err := readFull(cfg.In, buf)
			partialReads += int64(short)

			if err != nil && err != io.EOF {
				// Go's runtime poller retries EAGAIN/EINTR internally, so
				// any error observed here is already a genuine fatal
				// condition per spec.md §7.
				rs.Fail(blkio.RuntimeErrorKind, "read", err)
				return
			}
			if err == io.EOF {
				rs.SetRemainder(int64(n))
				rs.SetFinished()
				fo.finish(n > 0)
				return
			}

			fo.publish()
			blocksRead++
		}
	}()

	writerResults := make([]DestSummary, numWriters)
	done := make(chan struct{}, numWriters)
	for c := 0; c < numWriters; c++ {
		go func(c int) {
			defer func() { done <- struct{}{} }()
			name := destName(cfg, c)
			var written int64
			for {
				idx, final, ok := fo.waitForData(ctx, c)
				if !ok {
					writerResults[c] = DestSummary{Name: name, BytesWritten: written}
					return
				}
				block := ring.Slot(idx)
				n := len(block)
				if final {
					n = int(rs.Remainder())
				}

				wn, werr := cfg.Outs[c].Write(block[:n])
				fo.release(c)
				written += int64(wn)

				if werr != nil {
					rs.Fail(blkio.RuntimeErrorKind, fmt.Sprintf("write %s", name), werr)
					writerResults[c] = DestSummary{Name: name, BytesWritten: written}
					return
				}
				if wn < n {
					rs.Fail(blkio.RuntimeErrorKind, fmt.Sprintf("short write %s", name), io.ErrShortWrite)
					writerResults[c] = DestSummary{Name: name, BytesWritten: written, ShortWrite: true}
					return
				}
				if cfg.Status != nil {
					cfg.Status.Sample(written)
				}
			}
		}(c)
	}

	<-readerDone
	for c := 0; c < numWriters; c++ {
		<-done
	}

	return Summary{
		Dests:            writerResults,
		PartialReads:     partialReads,
		AverageOccupancy: fo.averageOccupancy(),
		Remainder:        rs.Remainder(),
		Aborted:          rs.Aborted(),
	}
}

// readFull fills buf completely from r, tolerating short reads (each one
// counted) and retrying until the buffer is full or r reports io.EOF, per
// spec.md §4.6's reader contract.
func readFull(r io.Reader, buf []byte) (n int, shortReads int, err error) {
	for n < len(buf) {
		m, rerr := r.Read(buf[n:])
		if m > 0 && m < len(buf)-n {
			shortReads++
		}
		n += m
		if rerr != nil {
			return n, shortReads, rerr
		}
	}
	return n, shortReads, nil
}
