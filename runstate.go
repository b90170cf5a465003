// runstate.go: process-wide run state and signal/cancellation policy
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package blkio

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// RunState holds the three process-wide scalars a pipeline's producer and
// consumer(s) cooperate through: aborted (set by SIGINT or a fatal error),
// finished (set by the producer on EOF or block-count reached), and
// remainder (bytes in the last, possibly-short block). It also owns the
// single SIGINT handler for the run and an optional ErrorCallback, ported
// from the teacher's Logger.ErrorCallback hook.
type RunState struct {
	aborted   atomic.Bool
	finished  atomic.Bool
	remainder atomic.Int64

	// ErrorCallback, if set, is invoked once per Fail call with the
	// operation name and the underlying error, before aborted is set.
	ErrorCallback func(operation string, err error)

	mu           sync.Mutex
	err          error
	coordinators []Abortable
	sigCh        chan os.Signal
}

// NewRunState returns a RunState with no coordinators registered yet.
func NewRunState() *RunState {
	return &RunState{}
}

// Watch installs the single process-wide SIGINT handler. It is not
// idempotent (each call installs another handler): call it exactly once per run,
// typically from main(). The handler sets Aborted and calls Abort() on
// every Coordinator registered via Register, so no task sleeps forever
// waiting on a slot that will never come.
func (rs *RunState) Watch() {
	rs.sigCh = make(chan os.Signal, 1)
	signal.Notify(rs.sigCh, os.Interrupt)
	go func() {
		if _, ok := <-rs.sigCh; ok {
			rs.abort()
		}
	}()
}

// StopWatch stops the SIGINT handler goroutine installed by Watch and
// restores default signal behavior. Safe to call even if Watch was never
// called.
func (rs *RunState) StopWatch() {
	if rs.sigCh != nil {
		signal.Stop(rs.sigCh)
		close(rs.sigCh)
	}
}

// Register associates an Abortable (typically a Coordinator) with this
// RunState so that Abort (via SIGINT or Fail) wakes any task blocked on it.
func (rs *RunState) Register(c Abortable) {
	rs.mu.Lock()
	rs.coordinators = append(rs.coordinators, c)
	rs.mu.Unlock()
}

func (rs *RunState) abort() {
	rs.aborted.Store(true)
	rs.mu.Lock()
	cs := rs.coordinators
	rs.mu.Unlock()
	for _, c := range cs {
		c.Abort()
	}
}

// Aborted reports whether the run has been cancelled, by SIGINT or by a
// prior Fail call.
func (rs *RunState) Aborted() bool { return rs.aborted.Load() }

// Fail records a fatal PipelineError, invokes ErrorCallback if set, and
// aborts the run exactly like a SIGINT would. Only the first call's error
// is retained; subsequent calls still propagate the abort signal.
func (rs *RunState) Fail(kind ErrorKind, operation string, cause error) {
	pe := &PipelineError{Kind: kind, Operation: operation, Err: cause}

	rs.mu.Lock()
	if rs.err == nil {
		rs.err = pe
	}
	rs.mu.Unlock()

	if rs.ErrorCallback != nil {
		rs.ErrorCallback(operation, cause)
	}
	rs.abort()
}

// Err returns the first fatal error recorded via Fail, or nil.
func (rs *RunState) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.err
}

// SetFinished marks the producer side as done (EOF or block-count reached).
// finished must be observed by consumers only after Remainder has been
// set, per spec.md's ordering requirement for mbdd's final short write.
func (rs *RunState) SetFinished() { rs.finished.Store(true) }

// Finished reports whether the producer has finished.
func (rs *RunState) Finished() bool { return rs.finished.Load() }

// SetRemainder records the byte length of the final, possibly-short block.
// Must be called before SetFinished so that any consumer observing
// Finished() also observes the correct Remainder().
func (rs *RunState) SetRemainder(n int64) { rs.remainder.Store(n) }

// Remainder returns the byte length of the final block.
func (rs *RunState) Remainder() int64 { return rs.remainder.Load() }
