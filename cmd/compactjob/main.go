// Package main provides the compactjob CLI tool for running a one-shot
// standalone compaction against a committed snapshot, independent of any
// live Writer's background compaction loop.
//
// Usage:
//
//	compactjob --partition=<name> --bucket=<n> --top-level=<n>
//
// compactjob runs against an in-memory snapshot/manifest store and exists
// to exercise and demonstrate mergetree.WriteCoordinator.CreateCompactTask
// end to end; wiring it to a real external manifest service is left to
// the caller. The store starts empty and nothing loads files into it, so
// as shipped CreateCompactTask finds no snapshot and the command prints
// an error and exits with status 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	mergetree "github.com/yaofengchn/flink-table-store"
	"github.com/yaofengchn/flink-table-store/internal/compaction"
	"github.com/yaofengchn/flink-table-store/internal/logging"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

var (
	partition = flag.String("partition", "", "Partition to compact (required)")
	bucket    = flag.Int("bucket", 0, "Bucket to compact")
	topLevel  = flag.Int("top-level", 0, "Output level for the compacted run (required)")
	verbose   = flag.Bool("v", false, "Verbose logging")
	quiet     = flag.Bool("quiet", false, "Discard all logging")
	help      = flag.Bool("help", false, "Print help")
)

func main() {
	flag.Parse()

	if *help || *partition == "" || *topLevel <= 0 {
		printUsage()
		os.Exit(2)
	}

	var logger logging.Logger = logging.Discard
	if !*quiet {
		level := logging.LevelWarn
		if *verbose {
			level = logging.LevelDebug
		}
		logger = logging.NewDefaultLogger(level)
	}

	store := manifest.NewMemorySnapshots()
	opts := mergetree.DefaultOptions()
	opts.Logger = logger
	opts.NumLevels = *topLevel + 1

	coord := mergetree.NewWriteCoordinator(opts, store, store, &manifest.SequentialPathFactory{}, compaction.GoExecutor{})

	task, err := coord.CreateCompactTask(*partition, *bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compactjob: %v\n", err)
		os.Exit(1)
	}

	out, err := task.RunAndCommit(context.Background(), *topLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compactjob: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("compacted %s/%d into %d file(s) at level %d\n", *partition, *bucket, len(out), *topLevel)
	for _, f := range out {
		fmt.Printf("  %s [%x, %x] %d bytes\n", f.FileName, f.MinKey, f.MaxKey, f.FileSize)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: compactjob --partition=<name> --bucket=<n> --top-level=<n>")
	flag.PrintDefaults()
}
