// pipeline.go: fixed-count generator -> writer, two-slot double buffer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package fblckgen implements the fblckgen pipeline: a producer that fills
// a configurable number of blocks (ASCII or pseudo-random) and a consumer
// that writes them, in lockstep, to a sink — spec.md §4.5.
package fblckgen

import (
	"context"
	"io"

	"github.com/agilira/blkio"
)

// numSlots is fixed at 2, per spec.md §4.5: "at most two blocks are
// outstanding."
const numSlots = 2

// Config parameterizes a single fblckgen run.
type Config struct {
	Mode      blkio.FillMode
	BlockSize int
	Count     int64 // 0 means infinite
	Out       io.Writer

	// Status, if set, is sampled after every block write and rendered on
	// the caller's own cadence (e.g. blkio.StatusUpdateInterval).
	Status *blkio.StatusLine
}

// Summary reports the outcome of a Run.
type Summary struct {
	BytesWritten  int64
	BlocksWritten int64
	ShortWrite    bool
	Aborted       bool
}

// Run drives the two-slot double-buffer pipeline to completion: it blocks
// until the producer exhausts Count blocks (or runs forever if Count==0),
// the sink returns a short write, or rs is aborted (by SIGINT or a fatal
// error elsewhere). The caller owns rs's lifetime (including calling
// Watch) so multiple pipelines in the same process can share one SIGINT
// handler.
func Run(ctx context.Context, cfg Config, rs *blkio.RunState) Summary {
	ring := blkio.NewRing(numSlots, cfg.BlockSize)
	coord := blkio.NewCoordinator(numSlots)
	rs.Register(coord)

	var summary Summary
	seed := blkio.NewRandSeed()

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := int64(0); cfg.Count == 0 || i < cfg.Count; i++ {
			if rs.Aborted() {
				return
			}
			idx, ok := coord.WaitForEmptySlot(ctx)
			if !ok {
				return
			}
			blkio.FillBlock(ring.Slot(idx), cfg.BlockSize, cfg.Mode, i, &seed)
			coord.PublishSlot(idx)
		}
		rs.SetFinished()
	}()

	for i := int64(0); cfg.Count == 0 || i < cfg.Count; i++ {
		idx, ok := coord.WaitForFullSlot(ctx)
		if !ok {
			summary.Aborted = rs.Aborted()
			break
		}

		block := ring.Slot(idx)
		written, werr := cfg.Out.Write(block)
		coord.ReleaseSlot(idx)

		summary.BytesWritten += int64(written)
		if werr != nil {
			rs.Fail(blkio.RuntimeErrorKind, "write", werr)
			summary.Aborted = true
			break
		}
		if written < len(block) {
			summary.ShortWrite = true
			// A short write stops this loop cleanly, but the producer is
			// still blocked (or about to block) on WaitForEmptySlot; wake
			// it via the coordinator directly rather than rs.Fail, so the
			// summary still reports ShortWrite instead of Aborted.
			coord.Abort()
			break
		}

		summary.BlocksWritten++
		if cfg.Status != nil {
			cfg.Status.Sample(summary.BytesWritten)
		}
	}

	<-producerDone
	return summary
}
