// main.go: fblckgen command-line driver
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/agilira/blkio"
	"github.com/agilira/blkio/fblckgen"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fblckgen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	ascii := fs.Bool("a", true, "fill blocks with repeating printable ASCII")
	random := fs.Bool("r", false, "fill blocks with a fast pseudo-random stream")
	quiet := fs.Bool("q", false, "suppress the closing summary")
	verbose := fs.Bool("v", false, "print a live progress line")
	blockSizeFlag := fs.String("b", "1s", "block size, e.g. 64k, 1m, 512s")
	countFlag := fs.String("c", "1k", "block count, 0 for infinite")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	blockSize := blkio.GetNum(*blockSizeFlag)
	if blockSize <= 0 {
		fmt.Fprintf(os.Stderr, "fblckgen: invalid block size %q\n", *blockSizeFlag)
		return 1
	}
	count := blkio.GetNum(*countFlag)

	mode := blkio.FillASCII
	if *random {
		mode = blkio.FillRand
	}
	_ = ascii // -a is the default; -r overrides it, matching the mutually exclusive pair in spec §6.

	out, err := dupStdout()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fblckgen: %v\n", err)
		return 1
	}
	defer out.Close()

	rs := blkio.NewRunState()
	rs.Watch()
	defer rs.StopWatch()

	var status *blkio.StatusLine
	if *verbose {
		status = blkio.NewStatusLine(os.Stderr, count*blockSize)
		defer status.Close()
		stop := startTicker(status)
		defer close(stop)
	}

	start := time.Now()
	summary := fblckgen.Run(context.Background(), fblckgen.Config{
		Mode:      mode,
		BlockSize: int(blockSize),
		Count:     count,
		Out:       out,
		Status:    status,
	}, rs)
	elapsed := time.Since(start).Seconds()

	if *verbose {
		fmt.Fprintln(os.Stderr)
	}

	if !*quiet {
		printSummary(os.Stderr, summary, elapsed)
	}

	if rs.Err() != nil {
		return 1
	}
	return 0
}

// dupStdout duplicates the process's stdout descriptor and returns a file
// backed by the duplicate, per spec.md §4.5: "standard output is dup'd to
// an internal descriptor and the original closed, to prevent any
// buffered-I/O layer from interposing."
func dupStdout() (*os.File, error) {
	fd, err := syscall.Dup(int(os.Stdout.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup stdout: %w", err)
	}
	os.Stdout.Close()
	return os.NewFile(uintptr(fd), "stdout"), nil
}

func startTicker(status *blkio.StatusLine) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(blkio.StatusUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				status.Render()
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func printSummary(w *os.File, s fblckgen.Summary, elapsed float64) {
	rateKiB := 0.0
	if elapsed > 0 {
		rateKiB = float64(s.BytesWritten) / 1024 / elapsed
	}
	switch {
	case s.Aborted:
		fmt.Fprintf(w, "fblckgen: aborted after %d bytes (%d blocks), %.1f KiB/s\n", s.BytesWritten, s.BlocksWritten, rateKiB)
	case s.ShortWrite:
		fmt.Fprintf(w, "fblckgen: short write after %d bytes (%d blocks), %.1f KiB/s\n", s.BytesWritten, s.BlocksWritten, rateKiB)
	default:
		fmt.Fprintf(w, "fblckgen: %d bytes (%d blocks), %.2fs, %.1f KiB/s\n", s.BytesWritten, s.BlocksWritten, elapsed, rateKiB)
	}
}
