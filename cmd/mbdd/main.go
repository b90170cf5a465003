// main.go: mbdd command-line driver
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agilira/blkio"
	"github.com/agilira/blkio/mbdd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mbdd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	blockSizeFlag := fs.String("b", "64k", "block size, e.g. 64k, 1m, 512s")
	countFlag := fs.String("c", "0", "block count, 0 to read until EOF")
	numBufsFlag := fs.Int("n", mbdd.DefaultNumBufs, "number of ring buffers")
	quiet := fs.Bool("q", false, "suppress the closing summary")
	noStdout := fs.Bool("s", false, "suppress the default stdout sink")
	verbose := fs.Bool("v", false, "print a live progress line")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	blockSize := blkio.GetNum(*blockSizeFlag)
	if blockSize <= 0 {
		fmt.Fprintf(os.Stderr, "mbdd: invalid block size %q\n", *blockSizeFlag)
		return 1
	}
	maxBlocks := blkio.GetNum(*countFlag)
	if *numBufsFlag < 1 {
		fmt.Fprintf(os.Stderr, "mbdd: invalid buffer count %d\n", *numBufsFlag)
		return 1
	}

	var outs []io.Writer
	var names []string
	if !*noStdout {
		outs = append(outs, os.Stdout)
		names = append(names, "stdout")
	}

	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, path := range fs.Args() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mbdd: open %s: %v\n", path, err)
			return 1
		}
		files = append(files, f)
		outs = append(outs, f)
		names = append(names, path)
	}

	if len(outs) == 0 {
		fmt.Fprintln(os.Stderr, "mbdd: no destinations (stdout suppressed and none given)")
		return 1
	}

	rs := blkio.NewRunState()
	rs.Watch()
	defer rs.StopWatch()

	var status *blkio.StatusLine
	if *verbose {
		status = blkio.NewStatusLine(os.Stderr, 0)
		defer status.Close()
		stop := startTicker(status)
		defer close(stop)
	}

	start := time.Now()
	summary := mbdd.Run(context.Background(), mbdd.Config{
		BlockSize: int(blockSize),
		NumBufs:   *numBufsFlag,
		MaxBlocks: maxBlocks,
		In:        os.Stdin,
		Outs:      outs,
		DestNames: names,
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

func printSummary(w *os.File, s mbdd.Summary, elapsed float64) {
	status := "completed"
	if s.Aborted {
		status = "aborted"
	}
	fmt.Fprintf(w, "mbdd: %s in %.2fs, %d partial reads, avg occupancy %.2f\n", status, elapsed, s.PartialReads, s.AverageOccupancy)
	for _, d := range s.Dests {
		mark := ""
		if d.ShortWrite {
			mark = " (short write)"
		}
		fmt.Fprintf(w, "  %s: %d bytes%s\n", d.Name, d.BytesWritten, mark)
	}
}
