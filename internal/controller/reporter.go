// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/evalprof/evalprof/internal/controller"

import (
	"context"

	"github.com/evalprof/evalprof/metrics"
	"github.com/evalprof/evalprof/reporter"
	"github.com/evalprof/evalprof/times"
)

// startReporter sets up the reporter on the controller
func (c *Controller) startReporter(ctx context.Context, intervals *times.Times) error {
	if c.reporter != nil {
		// An injected reporter schedules itself and owns its own sources.
		return c.reporter.Start(ctx)
	}

	rep, err := reporter.New(&reporter.Config{
		Source:         c.sampler,
		Namer:          c.program,
		ReportInterval: intervals.ReportInterval(),
		TopN:           int(c.config.TopN),
		CacheSize:      stackCacheSize(intervals.ReportInterval(), intervals.SampleInterval()),
	})
	if err != nil {
		return err
	}

	if err = rep.Start(ctx); err != nil {
		return err
	}

	c.reporter = rep
	c.logReporter = rep
	metrics.SetReporter(rep)

	return nil
}
