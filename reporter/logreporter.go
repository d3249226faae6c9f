// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package reporter implements the export side of the profiler: periodic log
// reports of the hottest stacks and conversion into the pprof format.
package reporter // import "github.com/evalprof/evalprof/reporter"

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"

	"github.com/evalprof/evalprof/libprof"
)

const (
	// DefaultTopN is the number of stacks a report prints when not
	// configured otherwise.
	DefaultTopN = 10

	// DefaultCacheSize is the default capacity of the formatted stack
	// cache.
	DefaultCacheSize = 1024

	// stackCacheLifetime bounds how long a formatted stack stays cached
	// without being referenced by a report.
	stackCacheLifetime = 1 * time.Hour

	// reportJitter spreads the report ticks so that they don't run in
	// lockstep with other periodic work.
	reportJitter = 0.2
)

// Compile time checks to make sure LogReporter satisfies the interfaces.
var (
	_ Reporter        = (*LogReporter)(nil)
	_ MetricsReporter = (*LogReporter)(nil)
)

// Config holds the configuration of a LogReporter.
type Config struct {
	// Source provides the snapshots to report.
	Source SnapshotSource

	// Namer resolves frame identifiers for display. A nil Namer renders
	// frames as hex placeholders.
	Namer FrameNamer

	// ReportInterval determines how often a report is logged.
	ReportInterval time.Duration

	// TopN limits how many stacks each report prints. Defaults to
	// DefaultTopN if zero.
	TopN int

	// CacheSize is the capacity of the formatted stack cache. Defaults to
	// DefaultCacheSize if zero.
	CacheSize uint32
}

// LogReporter periodically takes a snapshot from its source and logs the
// hottest stacks. It doubles as the sink for agent metrics.
type LogReporter struct {
	cfg *Config

	// runLoop handles the run loop
	runLoop *runLoop

	// stackCache memoizes the display form of stacks keyed by their hash.
	stackCache *lru.SyncedLRU[libprof.StackHash, string]
}

// New creates a LogReporter.
func New(cfg *Config) (*LogReporter, error) {
	if cfg.Source == nil {
		return nil, errors.New("no snapshot source configured")
	}
	if cfg.ReportInterval <= 0 {
		return nil, fmt.Errorf("invalid report interval %v", cfg.ReportInterval)
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	stackCache, err := lru.NewSynced[libprof.StackHash, string](
		cfg.CacheSize, libprof.StackHash.Hash32)
	if err != nil {
		return nil, fmt.Errorf("creating stack cache: %w", err)
	}
	stackCache.SetLifetime(stackCacheLifetime)

	return &LogReporter{
		cfg:        cfg,
		runLoop:    &runLoop{stopSignal: make(chan libprof.Void)},
		stackCache: stackCache,
	}, nil
}

// Start registers the reporting loop in the background.
func (r *LogReporter) Start(ctx context.Context) error {
	r.runLoop.Start(ctx, r.cfg.ReportInterval, reportJitter,
		r.reportOnce,
		func() {
			r.stackCache.PurgeExpired()
		})
	return nil
}

// Stop triggers a graceful shutdown of the reporting loop.
func (r *LogReporter) Stop() {
	r.runLoop.Stop()
}

func (r *LogReporter) reportOnce() {
	r.Report(r.cfg.Source.TakeSnapshot())
}

// Report logs the hottest stacks of the given snapshot.
func (r *LogReporter) Report(snap *libprof.Snapshot) {
	if snap == nil || snap.Mode == libprof.ModeNone {
		log.Debug("Profiler idle, nothing to report")
		return
	}

	live := snap.LiveStacks()
	top := make([]libprof.SampleStack, len(live))
	copy(top, live)
	slices.SortFunc(top, func(a, b libprof.SampleStack) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(top) > r.cfg.TopN {
		top = top[:r.cfg.TopN]
	}

	duration := snap.StopTime.Sub(snap.StartTime).Round(time.Millisecond)
	log.Infof("Profile %s: %d samples over %v (%d stacks, %d samples folded into others)",
		snap.SessionID, snap.SampleCount, duration, len(live), snap.OthersCount())

	for i, st := range top {
		var share float64
		if snap.SampleCount > 0 {
			share = 100 * float64(st.Count) / float64(snap.SampleCount)
		}
		log.Infof("  #%-2d %6.2f%% %8d  %s", i+1, share, st.Count, r.formatStack(st))
	}
}

// formatStack renders a stack leaf-first as semicolon separated frame
// names, caching the result keyed by the stack hash.
func (r *LogReporter) formatStack(st libprof.SampleStack) string {
	hash := st.Hash()
	if formatted, ok := r.stackCache.GetAndRefresh(hash, stackCacheLifetime); ok {
		return formatted
	}

	names := make([]string, len(st.Frames))
	for i, frame := range st.Frames {
		names[i] = frameName(r.cfg.Namer, frame)
	}
	formatted := strings.Join(names, ";")
	r.stackCache.Add(hash, formatted)
	return formatted
}

// ReportMetrics logs a flushed metrics batch, making LogReporter usable as
// the agent's metrics sink.
func (r *LogReporter) ReportMetrics(timestamp uint32, ids []uint32, values []int64) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	for i := range ids {
		log.Debugf("Metric %d: %d (ts: %d)", ids[i], values[i], timestamp)
	}
}

// frameName returns the display name of frame, falling back to a hex
// placeholder without a namer.
func frameName(namer FrameNamer, frame libprof.FrameID) string {
	if namer == nil {
		return fmt.Sprintf("func_%x", uint64(frame))
	}
	return namer.FrameName(frame)
}
