// pipeline.go: iohammer worker pool
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package iohammer implements the iohammer worker pool: N workers, each
// with its own file descriptor against a shared target, issuing
// random-offset reads and writes bounded by an exact operation count —
// spec.md §4.7.
package iohammer

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"

	"github.com/agilira/blkio"
)

// Config parameterizes a single iohammer run.
type Config struct {
	Target    Target
	Threads   int
	BlockSize int
	Count     int64 // 0 means run until aborted
	WritePct  int   // 0..100

	Mode blkio.FillMode

	// IgnoreErrors, when true, counts I/O errors and retries instead of
	// aborting the run (-i).
	IgnoreErrors bool
}

// Summary reports the outcome of a Run.
type Summary struct {
	Ops         int64
	Writes      int64
	ShortIO     int64
	IOErrors    int64
	Elapsed     time.Duration
	Aborted     bool
}

// ledger tracks exactly how many operations have been issued against
// Count, using the "numio + inFlight <= iolimit" accounting rule so that
// a pool of concurrently-running workers can never collectively overshoot
// the requested count, regardless of how operations interleave.
type ledger struct {
	limit    int64 // 0 means unlimited; immutable after construction
	stopped  atomic.Bool
	issued   atomic.Int64
	inFlight atomic.Int64
}

func newLedger(limit int64) *ledger {
	return &ledger{limit: limit}
}

// reserve attempts to claim one operation slot. It fails once stopped
// (by Abort) or once issued has reached limit, both of which are
// permanent conditions: the caller should stop looping, not retry. issued
// counts every reservation, in flight or completed, and is claimed with a
// single CAS, so issued (= numio + inFlight) never exceeds limit.
func (l *ledger) reserve() bool {
	if l.stopped.Load() {
		return false
	}
	if l.limit <= 0 {
		l.inFlight.Add(1)
		return true
	}
	var sw spin.Wait
	for {
		if l.stopped.Load() {
			return false
		}
		issued := l.issued.Load()
		if issued >= l.limit {
			return false
		}
		if l.issued.CompareAndSwap(issued, issued+1) {
			l.inFlight.Add(1)
			return true
		}
		sw.Once()
	}
}

// complete records that a reserved operation finished; it was already
// counted in issued when it was reserved.
func (l *ledger) complete() {
	l.inFlight.Add(-1)
}

// Run drives Threads workers against cfg.Target until Count operations
// have completed (or forever, if Count == 0), an unrecoverable I/O error
// occurs (unless IgnoreErrors), or rs is aborted.
func Run(cfg Config, rs *blkio.RunState) Summary {
	writeThreshold := (cfg.WritePct * 1024) / 100
	fileBlocks := int(cfg.Target.Size / int64(cfg.BlockSize))
	if fileBlocks < 1 {
		fileBlocks = 1
	}

	led := newLedger(cfg.Count)
	rs.Register(ledgerAbortable{led: led})

	var ops, writes, shortIO, ioErrs atomic.Int64

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Threads; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(workerID, cfg, led, fileBlocks, writeThreshold, rs, &ops, &writes, &shortIO, &ioErrs)
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return Summary{
		Ops:      ops.Load(),
		Writes:   writes.Load(),
		ShortIO:  shortIO.Load(),
		IOErrors: ioErrs.Load(),
		Elapsed:  elapsed,
		Aborted:  rs.Aborted(),
	}
}

func runWorker(workerID int, cfg Config, led *ledger, fileBlocks, writeThreshold int, rs *blkio.RunState, ops, writes, shortIO, ioErrs *atomic.Int64) {
	f, err := cfg.Target.Open()
	if err != nil {
		rs.Fail(blkio.SetupErrorKind, fmt.Sprintf("worker %d open target", workerID), err)
		return
	}
	defer f.Close()

	prng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	seed := blkio.NewRandSeed() + uint64(workerID)
	buf := make([]byte, cfg.BlockSize)

	for {
		if rs.Aborted() {
			return
		}
		if !led.reserve() {
			return
		}

		block := prng.Intn(fileBlocks)
		offset := int64(block) * int64(cfg.BlockSize)
		isWrite := (prng.Intn(1024) & 0x3ff) < writeThreshold

		if isWrite {
			blkio.FillBlock(buf, cfg.BlockSize, cfg.Mode, int64(ops.Load()), &seed)
		}

		n, err := doIO(f, buf, offset, isWrite)
		led.complete()
		ops.Add(1)
		if isWrite {
			writes.Add(1)
		}

		if n >= 0 && n < cfg.BlockSize {
			shortIO.Add(1)
		}
		if err != nil {
			ioErrs.Add(1)
			if cfg.IgnoreErrors {
				var bo iox.Backoff
				bo.Wait()
				continue
			}
			rs.Fail(blkio.RuntimeErrorKind, fmt.Sprintf("worker %d io", workerID), err)
			return
		}
	}
}

// doIO issues one positioned read or write at offset using pread/pwrite
// (via ReadAt/WriteAt) rather than Seek+Read/Write. A directory target's
// workers all share one syscall.Dup'd descriptor (see target.go), and
// dup'd descriptors share a single kernel file offset; a seek-then-I/O pair
// would race across concurrent workers issuing operations against that fd.
// Positioned I/O carries its own offset per call, so it is safe to share a
// descriptor across workers regardless of target kind.
func doIO(f *os.File, buf []byte, offset int64, write bool) (int, error) {
	if write {
		n, err := f.WriteAt(buf, offset)
		return n, err
	}
	n, err := f.ReadAt(buf, offset)
	return n, err
}

// ledgerAbortable adapts a ledger to blkio.Abortable: aborting an iohammer
// run should stop every worker from reserving further operations, the
// same way SIGINT stops fblckgen/mbdd's coordinators.
type ledgerAbortable struct {
	led *ledger
}

func (a ledgerAbortable) Abort() {
	a.led.stopped.Store(true)
}
