// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package times // import "github.com/evalprof/evalprof/times"

import (
	"time"
)

// Compile time check for interface adherence
var _ IntervalsAndTimers = (*Times)(nil)

// Times holds all the intervals used across the agent in a central place
// and comes with Getters to read them.
type Times struct {
	sampleInterval  time.Duration
	reportInterval  time.Duration
	monitorInterval time.Duration
}

// IntervalsAndTimers is a meta-interface that exists purely to document its
// functionality.
type IntervalsAndTimers interface {
	// SampleInterval defines the period of the stack sampling timer.
	SampleInterval() time.Duration
	// ReportInterval defines the interval at which aggregated profiles are
	// handed to the reporter.
	ReportInterval() time.Duration
	// MonitorInterval defines the interval for metric collection.
	MonitorInterval() time.Duration
}

func (t *Times) SampleInterval() time.Duration { return t.sampleInterval }

func (t *Times) ReportInterval() time.Duration { return t.reportInterval }

func (t *Times) MonitorInterval() time.Duration { return t.monitorInterval }

// New returns a new Times instance.
func New(sampleInterval, reportInterval, monitorInterval time.Duration) *Times {
	return &Times{
		sampleInterval:  sampleInterval,
		reportInterval:  reportInterval,
		monitorInterval: monitorInterval,
	}
}
