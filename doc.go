// doc.go: package overview
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package blkio provides the shared concurrency skeleton and primitives
// behind a small family of block-oriented I/O benchmarking and
// data-movement tools:
//
//   - fblckgen generates a configurable number of fixed-size blocks
//     (repeating-ASCII or pseudo-random) and writes them to a sink.
//   - mbdd reads from an input, stages blocks through an in-memory ring
//     of buffers, and fans them out to N independently-progressing sinks.
//   - iohammer issues random-offset reads and/or writes against a file or
//     block device from many concurrent workers to measure throughput.
//
// # Core abstractions
//
// Block is a fixed-size []byte. Ring is a bounded, cache-line-aligned
// array of blocks reused cyclically — the core never allocates per-block.
// Coordinator gates one producer/consumer pair's access to a Ring's slots
// with a mutex, condition variables and a single occupancy counter; mbdd's
// fan-out gate keeps one read cursor per consumer instead.
// RunState holds the three process-wide scalars (aborted, finished,
// remainder) a SIGINT handler and a producer/consumer pair cooperate
// through.
//
// # Size suffixes
//
// GetNum parses decimal sizes with an optional single-letter multiplier
// from the closed set {s, k, m, g, t, p, e}, case-insensitive.
//
// # Dependencies
//
// blkio depends on:
//   - code.hybscloud.com/iobuf: cache-line-aligned buffer allocation
//   - code.hybscloud.com/iox: Backoff between iohammer operations after an
//     ignored I/O error (-i)
//   - code.hybscloud.com/spin: short-retry spin-wait primitive
//   - github.com/agilira/go-timecache: cached wall-clock reads for the
//     progress reporter
//   - golang.org/x/term: terminal width detection for the progress line
package blkio
