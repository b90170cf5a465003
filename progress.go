// progress.go: progress line reporter
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package blkio

import (
	"fmt"
	"io"
	"sync"
	"time"

	timecache "github.com/agilira/go-timecache"
	"golang.org/x/term"
)

// StatusUpdateInterval is the fixed refresh cadence for StatusLine, per
// spec.md §4.4's STATUS_UPDATE_TIME.
const StatusUpdateInterval = 250 * time.Millisecond

// ewmaAlpha weights the most recent sample against the running rate
// estimate; a small window favors responsiveness over smoothness, matching
// "a small sample window" from spec.md §4.4.
const ewmaAlpha = 0.3

// StatusLine renders a single carriage-return-terminated progress line to
// w: "<current> <unit>  <rate> <rate-unit>  [ETA mm:ss]". It is a passive
// collaborator — callers report progress with Sample and call Render on a
// timer of their own (typically StatusUpdateInterval).
type StatusLine struct {
	w     io.Writer
	total int64 // 0 means unknown; ETA is omitted

	clock *timecache.TimeCache

	mu       sync.Mutex
	current  int64
	lastTime time.Time
	rate     float64 // bytes/sec, EWMA
	started  bool
}

// NewStatusLine returns a StatusLine writing to w. A total of 0 means the
// final size is unknown, so no ETA is ever printed.
func NewStatusLine(w io.Writer, total int64) *StatusLine {
	return &StatusLine{
		w:     w,
		total: total,
		clock: timecache.NewWithResolution(time.Millisecond),
	}
}

// Close stops the underlying cached clock. Safe to call more than once.
func (s *StatusLine) Close() {
	if s.clock != nil {
		s.clock.Stop()
	}
}

// Sample records that current bytes have been processed so far (a
// cumulative total, not a delta) and updates the smoothed rate estimate.
func (s *StatusLine) Sample(current int64) {
	now := s.clock.CachedTime()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.current = current
		s.lastTime = now
		s.started = true
		return
	}

	dt := now.Sub(s.lastTime).Seconds()
	if dt > 0 {
		instant := float64(current-s.current) / dt
		if s.rate == 0 {
			s.rate = instant
		} else {
			s.rate = ewmaAlpha*instant + (1-ewmaAlpha)*s.rate
		}
	}
	s.current = current
	s.lastTime = now
}

// Render writes the current progress line to w, truncated to the terminal
// width when w is a terminal (golang.org/x/term.GetSize).
func (s *StatusLine) Render() {
	s.mu.Lock()
	current, rate, total := s.current, s.rate, s.total
	s.mu.Unlock()

	value, unit := humanRate(rate)
	line := fmt.Sprintf("%d bytes  %.1f %s/s", current, value, unit)

	if total > 0 && rate > 0 {
		remaining := float64(total-current) / rate
		if remaining < 0 {
			remaining = 0
		}
		mins := int(remaining) / 60
		secs := int(remaining) % 60
		line += fmt.Sprintf("  ETA %02d:%02d", mins, secs)
	}

	if width := terminalWidth(s.w); width > 0 && len(line) > width {
		line = line[:width]
	}

	fmt.Fprintf(s.w, "\r%s", line)
}

func terminalWidth(w io.Writer) int {
	type fdHolder interface{ Fd() uintptr }
	f, ok := w.(fdHolder)
	if !ok {
		return 0
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

func humanRate(bytesPerSec float64) (float64, string) {
	const unit = 1024.0
	if bytesPerSec < unit {
		return bytesPerSec, "B"
	}
	div, exp := unit, 0
	for n := bytesPerSec / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}
	return bytesPerSec / div, units[exp]
}
