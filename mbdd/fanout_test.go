// fanout_test.go: multi-consumer occupancy gate tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mbdd

import (
	"context"
	"testing"
	"time"
)

func TestFanoutSlowestWriterThrottlesReader(t *testing.T) {
	f := newFanout(2, 2)
	ctx := context.Background()

	idx, ok := f.waitForSpace(ctx)
	if !ok || idx != 0 {
		t.Fatalf("first slot = (%d,%v), want (0,true)", idx, ok)
	}
	f.publish()

	idx, ok = f.waitForSpace(ctx)
	if !ok || idx != 1 {
		t.Fatalf("second slot = (%d,%v), want (1,true)", idx, ok)
	}
	f.publish()

	// Writer 0 drains both; writer 1 drains none. The ring is now full from
	// writer 1's perspective (occupancy 2 == numBufs), so the reader must
	// block even though writer 0 is caught up.
	idx0, _, ok := f.waitForData(ctx, 0)
	if !ok {
		t.Fatal("writer 0 expected data")
	}
	f.release(0)
	idx0b, _, ok := f.waitForData(ctx, 0)
	if !ok {
		t.Fatal("writer 0 expected second block")
	}
	f.release(0)
	_ = idx0
	_ = idx0b

	done := make(chan struct{})
	go func() {
		f.waitForSpace(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reader advanced despite writer 1 still full")
	case <-time.After(20 * time.Millisecond):
	}

	// Writer 1 drains one slot; now max occupancy is 1 < numBufs(2), so the
	// reader unblocks.
	_, _, ok = f.waitForData(ctx, 1)
	if !ok {
		t.Fatal("writer 1 expected data")
	}
	f.release(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader never unblocked after writer 1 released a slot")
	}
}

func TestFanoutFinishMarksFinalBlock(t *testing.T) {
	f := newFanout(4, 1)
	ctx := context.Background()

	idx, _ := f.waitForSpace(ctx)
	_ = idx
	f.publish()

	f.finish(false) // clean EOF, no trailing partial block

	_, final, ok := f.waitForData(ctx, 0)
	if !ok {
		t.Fatal("expected one block of data")
	}
	if !final {
		t.Fatal("expected the only block to be marked final")
	}
	f.release(0)

	_, _, ok = f.waitForData(ctx, 0)
	if ok {
		t.Fatal("expected no more data after draining the final block")
	}
}

func TestFanoutAbortWakesAllWaiters(t *testing.T) {
	f := newFanout(1, 1)
	ctx := context.Background()

	writerDone := make(chan bool, 1)
	go func() { _, _, ok := f.waitForData(ctx, 0); writerDone <- ok }()

	readerDone := make(chan bool, 1)
	go func() {
		// Fill the one slot, then try for a second: this blocks until
		// Abort wakes it, since nothing ever releases the slot.
		f.waitForSpace(ctx)
		f.publish()
		_, ok := f.waitForSpace(ctx)
		readerDone <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	f.Abort()

	select {
	case ok := <-writerDone:
		if ok {
			t.Fatal("expected ok=false for writer after Abort")
		}
	case <-time.After(time.Second):
		t.Fatal("Abort did not wake waiting writer")
	}

	select {
	case ok := <-readerDone:
		if ok {
			t.Fatal("expected ok=false for reader after Abort")
		}
	case <-time.After(time.Second):
		t.Fatal("Abort did not wake waiting reader")
	}
}
