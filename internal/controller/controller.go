// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller wires the synthetic workload, the sampler and the
// reporter together and drives their combined lifecycle.
package controller // import "github.com/evalprof/evalprof/internal/controller"

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/evalprof/evalprof/metrics/agentmetrics"
	"github.com/evalprof/evalprof/reporter"
	"github.com/evalprof/evalprof/sampler"
	"github.com/evalprof/evalprof/times"
	"github.com/evalprof/evalprof/workload"
)

// Controller is an instance that runs, manages and stops the profiling session.
type Controller struct {
	config   *Config
	reporter reporter.Reporter

	program *workload.Program
	sampler *sampler.Sampler

	// logReporter is set when the reporter was built by the controller itself.
	// It carries the snapshot-pulling surface that the lifecycle-only
	// reporter.Reporter interface does not expose.
	logReporter *reporter.LogReporter

	stopAgentMetrics func()
}

// New creates a new controller.
// The controller owns the process-wide metrics reporter on
// setup. So there should only ever be one running.
func New(cfg *Config, opts ...Option) *Controller {
	c := &Controller{
		config: cfg,
	}

	for _, opt := range opts {
		c = opt.applyOption(c)
	}

	return c
}

// Start starts the controller
// The controller should only be started once.
func (c *Controller) Start(ctx context.Context) error {
	program, err := workload.New(workload.Config{
		Seed: c.config.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to build the synthetic workload: %w", err)
	}
	c.program = program
	log.Debugf("Synthetic workload compiled: %d frames", program.NumFrames())

	intervals := times.New(c.config.SampleInterval, c.config.ReportInterval,
		c.config.MonitorInterval)

	smplr, err := sampler.New(sampler.Config{
		Walker:        program,
		MaxStackDepth: int(c.config.MaxStackDepth),
		SlotHeapSize:  int(c.config.SlotHeapSize),
		Intervals:     intervals,
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	c.sampler = smplr

	if err = c.startReporter(ctx, intervals); err != nil {
		return fmt.Errorf("failed to start reporter: %w", err)
	}

	c.stopAgentMetrics, err = agentmetrics.Start(ctx, c.config.MonitorInterval)
	if err != nil {
		return fmt.Errorf("failed to start agent metric collection: %w", err)
	}

	if err = c.sampler.Start(ctx, c.config.SampleInterval); err != nil {
		return fmt.Errorf("failed to start sampling: %w", err)
	}
	log.Printf("Attached sampler to workload")

	return nil
}

// Workload returns the synthetic program the controller profiles. It is only
// valid after Start succeeded.
func (c *Controller) Workload() *workload.Program {
	return c.program
}

// Sampler returns the sampler driving the session. It is only valid after
// Start succeeded.
func (c *Controller) Sampler() *sampler.Sampler {
	return c.sampler
}

// Shutdown stops the controller
func (c *Controller) Shutdown() {
	log.Info("Stop processing ...")
	if c.sampler != nil {
		c.sampler.Stop()
	}

	if c.logReporter != nil && c.sampler != nil {
		// One last report so samples taken since the previous tick are not
		// silently dropped.
		snapshot := c.sampler.TakeSnapshot()
		c.logReporter.Report(snapshot)

		if c.config.PprofOut != "" {
			if err := reporter.WriteFile(c.config.PprofOut, snapshot, c.program); err != nil {
				log.Errorf("Failed to write pprof profile: %v", err)
			} else {
				log.Infof("Wrote pprof profile to %s", c.config.PprofOut)
			}
		}
	}

	if c.stopAgentMetrics != nil {
		c.stopAgentMetrics()
	}

	if c.reporter != nil {
		c.reporter.Stop()
	}
}
