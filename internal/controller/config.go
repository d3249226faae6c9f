// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/evalprof/evalprof/internal/controller"

import (
	"errors"
	"flag"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxArgMaxStackDepth is the upper bound for the -max-stack-depth argument.
	// Deeper windows make every capture, hash and comparison proportionally
	// more expensive, which defeats the point of a low-overhead sampler.
	MaxArgMaxStackDepth = 512

	// MaxArgSlotHeapSize is the upper bound for the -slot-heap-size argument.
	MaxArgSlotHeapSize = 1 << 24
)

// Config is the configuration of the profiling session.
type Config struct {
	Copyright       bool
	Duration        time.Duration
	MaxStackDepth   uint
	MonitorInterval time.Duration
	PprofAddr       string
	PprofOut        string
	ReportInterval  time.Duration
	SampleInterval  time.Duration
	Seed            uint64
	SlotHeapSize    uint
	TopN            uint
	VerboseMode     bool
	Version         bool

	Fs *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.SampleInterval <= 0 {
		return errors.New("the sampling interval has to be positive")
	}

	if cfg.ReportInterval < 1*time.Second {
		return errors.New("the report interval has to be set to at least 1 second (1s)")
	}

	if cfg.MonitorInterval < 1*time.Second {
		return errors.New("the monitor interval has to be set to at least 1 second (1s)")
	}

	if cfg.MaxStackDepth == 0 || cfg.MaxStackDepth > MaxArgMaxStackDepth {
		return fmt.Errorf("max stack depth %d is outside the range [1..%d]",
			cfg.MaxStackDepth, MaxArgMaxStackDepth)
	}

	if cfg.SlotHeapSize == 0 || cfg.SlotHeapSize > MaxArgSlotHeapSize {
		return fmt.Errorf("slot heap size %d is outside the range [1..%d]",
			cfg.SlotHeapSize, MaxArgSlotHeapSize)
	}

	if cfg.Duration < 0 {
		return errors.New("the profiling duration can not be negative")
	}

	return nil
}
