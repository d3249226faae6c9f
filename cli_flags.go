// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/evalprof/evalprof/internal/controller"
	"github.com/evalprof/evalprof/reporter"
	"github.com/evalprof/evalprof/sampler"
)

const (
	// Default values for CLI flags
	defaultArgSampleInterval  = 1 * time.Millisecond
	defaultArgReportInterval  = 5 * time.Second
	defaultArgMonitorInterval = 5 * time.Second
	defaultArgMaxStackDepth   = sampler.DefaultMaxStackDepth
	defaultArgSlotHeapSize    = sampler.DefaultSlotHeapSize
	defaultArgTopN            = reporter.DefaultTopN
	defaultArgSeed            = 42
)

// Help strings for command line arguments
var (
	copyrightHelp = "Show copyright and short license text."
	durationHelp  = "Stop profiling after this duration and exit. " +
		"If zero, the profiler runs until it receives a termination signal."
	maxStackDepthHelp = fmt.Sprintf("Number of stack frames recorded per sample. "+
		"Frames below this depth are ignored. Default is %d, max is %d.",
		defaultArgMaxStackDepth, controller.MaxArgMaxStackDepth)
	monitorIntervalHelp = "Set the monitor interval in seconds."
	pprofHelp           = "Listening address (e.g. localhost:6060) to serve pprof information."
	pprofOutHelp        = "Write the final profile to this file in pprof format on exit."
	reportIntervalHelp  = "Set the reporter's interval in seconds."
	sampleIntervalHelp  = "Set the interval between two stack captures."
	seedHelp            = "Seed for the synthetic workload's phase schedule. " +
		"Runs with the same seed execute the same schedule."
	slotHeapSizeHelp = fmt.Sprintf("Number of distinct stacks kept before the "+
		"least-frequent one is evicted. Default is %d.", defaultArgSlotHeapSize)
	topHelp         = "Number of stacks printed per report."
	verboseModeHelp = "Enable verbose logging and debugging capabilities."
	versionHelp     = "Show version."
)

func parseArgs(argv []string) (*controller.Config, error) {
	var args controller.Config

	fs := flag.NewFlagSet("evalprof", flag.ExitOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.BoolVar(&args.Copyright, "copyright", false, copyrightHelp)

	fs.DurationVar(&args.Duration, "duration", 0, durationHelp)

	fs.UintVar(&args.MaxStackDepth, "max-stack-depth", defaultArgMaxStackDepth,
		maxStackDepthHelp)
	fs.DurationVar(&args.MonitorInterval, "monitor-interval", defaultArgMonitorInterval,
		monitorIntervalHelp)

	fs.StringVar(&args.PprofAddr, "pprof", "", pprofHelp)
	fs.StringVar(&args.PprofOut, "pprof-out", "", pprofOutHelp)

	fs.DurationVar(&args.ReportInterval, "report-interval", defaultArgReportInterval,
		reportIntervalHelp)

	fs.DurationVar(&args.SampleInterval, "sample-interval", defaultArgSampleInterval,
		sampleIntervalHelp)
	fs.Uint64Var(&args.Seed, "seed", defaultArgSeed, seedHelp)
	fs.UintVar(&args.SlotHeapSize, "slot-heap-size", defaultArgSlotHeapSize,
		slotHeapSizeHelp)

	fs.UintVar(&args.TopN, "top", defaultArgTopN, topHelp)

	fs.BoolVar(&args.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.Version, "version", false, versionHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	args.Fs = fs

	return &args, ff.Parse(fs, argv,
		ff.WithEnvVarPrefix("EVALPROF"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// This will ignore configuration file (only) options that the
		// profiler does not recognize.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
