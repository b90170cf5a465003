// fanout.go: multi-consumer occupancy gate for the reader/N-writers pipeline
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mbdd

import (
	"context"
	"sync"
)

// fanout gates a single reader against destCount independent writers
// sharing one Ring. Each writer keeps its own read cursor; the reader's
// write cursor may advance past slot p only once every writer has drained
// past p-numBufs, i.e. only once the slowest writer's occupancy is below
// numBufs — per spec.md §4.6: "the slowest writer throttles the producer;
// faster writers are free to race ahead."
type fanout struct {
	numBufs int

	mu          sync.Mutex
	notFull     *sync.Cond   // reader waits here for room to advance
	notEmpty    []*sync.Cond // writer c waits on notEmpty[c] for new data
	writeCursor int
	readCursor  []int
	aborted     bool

	finished     bool
	finalSeq     int  // writeCursor value once no more blocks will be published
	finalPartial bool // whether the block at finalSeq-1 is a genuine short tail

	occSum     int64
	occSamples int64
}

func newFanout(numBufs, numWriters int) *fanout {
	f := &fanout{
		numBufs:    numBufs,
		readCursor: make([]int, numWriters),
		notEmpty:   make([]*sync.Cond, numWriters),
	}
	f.notFull = sync.NewCond(&f.mu)
	for i := range f.notEmpty {
		f.notEmpty[i] = sync.NewCond(&f.mu)
	}
	return f
}

// Abort wakes every blocked reader and writer; it implements
// blkio.Abortable so RunState.Register can wire a SIGINT or Fail into this
// gate the same way it wires a blkio.Coordinator.
func (f *fanout) Abort() {
	f.mu.Lock()
	f.aborted = true
	f.mu.Unlock()
	f.notFull.Broadcast()
	for _, c := range f.notEmpty {
		c.Broadcast()
	}
}

func (f *fanout) watchCtx(ctx context.Context) func() {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			f.notFull.Broadcast()
			for _, c := range f.notEmpty {
				c.Broadcast()
			}
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

// maxOccupancy returns the largest per-writer lag behind the write cursor;
// callers must hold f.mu.
func (f *fanout) maxOccupancy() int {
	max := 0
	for _, rc := range f.readCursor {
		if occ := f.writeCursor - rc; occ > max {
			max = occ
		}
	}
	return max
}

// recordOccupancy must be called with f.mu held, immediately after
// writeCursor advances.
func (f *fanout) recordOccupancy() {
	f.occSum += int64(f.maxOccupancy())
	f.occSamples++
}

// waitForSpace blocks until the reader may fill the next slot, returning
// its index.
func (f *fanout) waitForSpace(ctx context.Context) (index int, ok bool) {
	stop := f.watchCtx(ctx)
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for f.maxOccupancy() >= f.numBufs && !f.aborted && ctxErr(ctx) == nil {
		f.notFull.Wait()
	}
	if f.aborted || ctxErr(ctx) != nil {
		return 0, false
	}
	return f.writeCursor % f.numBufs, true
}

// publish records that the slot returned by the last waitForSpace is now
// full, waking every writer.
func (f *fanout) publish() {
	f.mu.Lock()
	f.writeCursor++
	f.recordOccupancy()
	f.mu.Unlock()
	for _, c := range f.notEmpty {
		c.Broadcast()
	}
}

// finish marks that no more blocks will ever be published. If hasPartial,
// the slot at the current write cursor already holds the final,
// possibly-short block and must be published atomically with finishing so
// that no writer can observe "finished" before that last block is visible.
// When !hasPartial, the run ended on an exact multiple of the block size:
// the last published block is a genuine full block and must never be
// truncated by waitForData, however close its sequence number is to
// finalSeq.
func (f *fanout) finish(hasPartial bool) {
	f.mu.Lock()
	if hasPartial {
		f.writeCursor++
		f.recordOccupancy()
	}
	f.finished = true
	f.finalSeq = f.writeCursor
	f.finalPartial = hasPartial
	f.mu.Unlock()
	for _, c := range f.notEmpty {
		c.Broadcast()
	}
}

// waitForData blocks writer c until a new slot is available for it,
// returning its index and whether it is the last block of a finished run
// (in which case only RunState.Remainder bytes of it are valid). ok is
// false once writer c has drained everything and no more will come.
func (f *fanout) waitForData(ctx context.Context, c int) (index int, final bool, ok bool) {
	stop := f.watchCtx(ctx)
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for f.readCursor[c] == f.writeCursor && !f.aborted && ctxErr(ctx) == nil {
		f.notEmpty[c].Wait()
	}
	if f.readCursor[c] == f.writeCursor {
		return 0, false, false
	}
	seq := f.readCursor[c]
	final = f.finished && f.finalPartial && seq == f.finalSeq-1
	return seq % f.numBufs, final, true
}

// release marks writer c's current slot drained, advancing its cursor and
// waking the reader if it was waiting on this writer specifically.
func (f *fanout) release(c int) {
	f.mu.Lock()
	f.readCursor[c]++
	f.mu.Unlock()
	f.notFull.Signal()
}

// averageOccupancy returns the mean of maxOccupancy() sampled at every
// publish, for the exit summary's "average buffer occupancy".
func (f *fanout) averageOccupancy() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.occSamples == 0 {
		return 0
	}
	return float64(f.occSum) / float64(f.occSamples)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
