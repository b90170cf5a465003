// runstate_test.go: run state tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package blkio

import (
	"errors"
	"testing"
)

func TestRunStateFailAbortsAndRecordsFirstError(t *testing.T) {
	rs := NewRunState()
	var callbacks []string
	rs.ErrorCallback = func(op string, err error) {
		callbacks = append(callbacks, op)
	}

	rs.Fail(RuntimeErrorKind, "write", errors.New("disk full"))
	rs.Fail(RuntimeErrorKind, "write-again", errors.New("ignored"))

	if !rs.Aborted() {
		t.Fatal("expected Aborted() after Fail")
	}
	if len(callbacks) != 2 {
		t.Fatalf("expected 2 callback invocations, got %d", len(callbacks))
	}

	var pe *PipelineError
	if !errors.As(rs.Err(), &pe) {
		t.Fatal("expected Err() to unwrap to *PipelineError")
	}
	if pe.Operation != "write" {
		t.Fatalf("expected first recorded error's operation to stick, got %q", pe.Operation)
	}
}

func TestRunStateFinishedOrdering(t *testing.T) {
	rs := NewRunState()
	rs.SetRemainder(17)
	rs.SetFinished()

	if !rs.Finished() {
		t.Fatal("expected Finished() true")
	}
	if rs.Remainder() != 17 {
		t.Fatalf("Remainder() = %d, want 17", rs.Remainder())
	}
}

func TestRunStateRegisterAndAbortPropagates(t *testing.T) {
	rs := NewRunState()
	c := NewCoordinator(1)
	rs.Register(c)

	rs.Fail(SetupErrorKind, "open", errors.New("boom"))

	_, ok := c.WaitForFullSlot(nil) //nolint:staticcheck // nil context is valid here: no deadline/cancel needed
	if ok {
		t.Fatal("expected coordinator to report aborted after RunState.Fail")
	}
}
