// main.go: iohammer command-line driver
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/agilira/blkio"
	"github.com/agilira/blkio/iohammer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("iohammer", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	ascii := fs.Bool("a", true, "fill written blocks with repeating printable ASCII")
	random := fs.Bool("r", false, "fill written blocks with a fast pseudo-random stream")
	ignoreErrors := fs.Bool("i", false, "count I/O errors and continue instead of aborting")
	unformatted := fs.Bool("u", false, "tab-separated unformatted output")
	verbose := fs.Bool("v", false, "print a live progress line")
	blockSizeFlag := fs.String("b", "1s", "block size, e.g. 64k, 1m, 512s")
	countFlag := fs.String("c", "0", "operation count, 0 to run until SIGINT")
	writePct := fs.Int("w", 0, "percent of operations that are writes")
	threads := fs.Int("t", 8, "number of concurrent workers")
	sizeFlag := fs.String("s", "1m", "size of a freshly created target file (directory targets only)")
	target := fs.String("f", ".", "target file, block/char device, or directory")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	blockSize := blkio.GetNum(*blockSizeFlag)
	if blockSize <= 0 {
		fmt.Fprintf(os.Stderr, "iohammer: invalid block size %q\n", *blockSizeFlag)
		return 1
	}
	count := blkio.GetNum(*countFlag)
	size := blkio.GetNum(*sizeFlag)
	if *threads < 1 {
		fmt.Fprintf(os.Stderr, "iohammer: invalid thread count %d\n", *threads)
		return 1
	}
	if *writePct < 0 || *writePct > 100 {
		fmt.Fprintf(os.Stderr, "iohammer: invalid write percentage %d\n", *writePct)
		return 1
	}

	mode := blkio.FillASCII
	if *random {
		mode = blkio.FillRand
	}
	_ = ascii

	tgt, err := iohammer.OpenTarget(*target, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iohammer: %v\n", err)
		return 1
	}

	rs := blkio.NewRunState()
	rs.Watch()
	defer rs.StopWatch()

	summary := iohammer.Run(iohammer.Config{
		Target:       tgt,
		Threads:      *threads,
		BlockSize:    int(blockSize),
		Count:        count,
		WritePct:     *writePct,
		Mode:         mode,
		IgnoreErrors: *ignoreErrors,
	}, rs)

	_ = verbose // no periodic status line for iohammer: its unit of work is an operation, not a byte stream.

	if *unformatted {
		printUnformatted(os.Stdout, tgt.Size, *threads, int(blockSize), *writePct, summary)
	} else {
		printSummary(os.Stderr, summary)
	}

	if rs.Err() != nil && !*ignoreErrors {
		return 1
	}
	return 0
}

func printSummary(w *os.File, s iohammer.Summary) {
	secs := s.Elapsed.Seconds()
	rate := 0.0
	if secs > 0 {
		rate = float64(s.Ops) / secs
	}
	avgSeekMs := 0.0
	if s.Ops > 0 {
		avgSeekMs = secs * 1000 / float64(s.Ops)
	}
	status := "completed"
	if s.Aborted {
		status = "aborted"
	}
	fmt.Fprintf(w, "iohammer: %s, %.2fs, %d IOs, %d writes, %.1f IOs/sec, %.3f ms avg seek\n",
		status, secs, s.Ops, s.Writes, rate, avgSeekMs)
	if s.ShortIO > 0 {
		fmt.Fprintf(w, "iohammer: %d short I/O operations\n", s.ShortIO)
	}
	if s.IOErrors > 0 {
		fmt.Fprintf(w, "iohammer: %d I/O errors\n", s.IOErrors)
	}
}

// printUnformatted prints the tab-separated fields from spec.md §6's -u
// mode: size, threads, blockSize, writePct, count, writes, seconds, rate.
func printUnformatted(w *os.File, size int64, threads, blockSize, writePct int, s iohammer.Summary) {
	secs := s.Elapsed.Seconds()
	rate := 0.0
	if secs > 0 {
		rate = float64(s.Ops) / secs
	}
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%.3f\t%.1f\n",
		size, threads, blockSize, writePct, s.Ops, s.Writes, secs, rate)
}
