// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmetrics reports the resource consumption of the profiler
// process itself: CPU time, heap usage, goroutines and GC activity.
package agentmetrics

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evalprof/evalprof/metrics"
	"github.com/evalprof/evalprof/periodiccaller"
)

// rusageSelf addresses the calling process in getrusage.
const rusageSelf = 0

// collector remembers the previous readings so that CPU time and GC
// activity can be reported as per-interval deltas.
type collector struct {
	// utime and stime hold the user and system CPU time of the previous
	// reading, in the timeval layout getrusage fills in.
	utime unix.Timeval
	stime unix.Timeval

	// numGC is the cumulative GC cycle count of the previous reading.
	numGC uint32
}

// timevalDeltaMS returns now minus prev in milliseconds.
func timevalDeltaMS(now, prev unix.Timeval) int64 {
	secDelta := (now.Sec - prev.Sec) * 1000
	usecDelta := (now.Usec - prev.Usec) / 1000
	return secDelta + usecDelta
}

// report reads the current resource usage of the process and hands the
// values to the metrics package.
func (c *collector) report() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var rusage unix.Rusage
	if err := unix.Getrusage(rusageSelf, &rusage); err != nil {
		log.Errorf("Failed to fetch Rusage: %v", err)
		return
	}

	deltaUtime := timevalDeltaMS(rusage.Utime, c.utime)
	deltaStime := timevalDeltaMS(rusage.Stime, c.stime)
	deltaGC := stats.NumGC - c.numGC

	c.utime = rusage.Utime
	c.stime = rusage.Stime
	c.numGC = stats.NumGC

	metrics.AddSlice([]metrics.Metric{
		{
			ID:    metrics.IDAgentGoRoutines,
			Value: metrics.MetricValue(runtime.NumGoroutine()),
		},
		{
			ID:    metrics.IDAgentHeapAlloc,
			Value: metrics.MetricValue(stats.HeapAlloc),
		},
		{
			ID:    metrics.IDAgentUTime,
			Value: metrics.MetricValue(deltaUtime),
		},
		{
			ID:    metrics.IDAgentSTime,
			Value: metrics.MetricValue(deltaStime),
		},
		{
			ID:    metrics.IDAgentGCCycles,
			Value: metrics.MetricValue(deltaGC),
		},
	})
}

// Start begins the periodic reporting of the agent's own resource metrics.
// The returned function stops the reporting again.
func Start(mainCtx context.Context, interval time.Duration) (func(), error) {
	var rusage unix.Rusage
	if err := unix.Getrusage(rusageSelf, &rusage); err != nil {
		log.Errorf("Failed to fetch Rusage: %v", err)
		return func() {}, err
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	// The first report's deltas are relative to the state at startup.
	prev := collector{
		utime: rusage.Utime,
		stime: rusage.Stime,
		numGC: stats.NumGC,
	}

	ctx, cancel := context.WithCancel(mainCtx)
	stopReporting := periodiccaller.Start(ctx, interval, func() {
		prev.report()
	})

	return func() {
		cancel()
		stopReporting()
	}, nil
}
