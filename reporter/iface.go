// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package reporter // import "github.com/evalprof/evalprof/reporter"

import (
	"context"

	"github.com/evalprof/evalprof/libprof"
)

// Reporter is the top-level interface implemented by a full reporter.
type Reporter interface {
	// Start starts the reporter in the background.
	//
	// If the reporter needs to perform a long-running starting operation
	// then it is recommended that Start() returns quickly and the
	// long-running operation is performed in the background.
	Start(context.Context) error

	// Stop triggers a graceful shutdown of the reporter.
	Stop()
}

// SnapshotSource provides the profiling data to report. It is implemented
// by the sampler.
type SnapshotSource interface {
	// TakeSnapshot exports the current profiling data. It must be safe to
	// call concurrently with sampling.
	TakeSnapshot() *libprof.Snapshot
}

// FrameNamer resolves frame identifiers to human readable names.
type FrameNamer interface {
	// FrameName returns the name of the function a frame belongs to.
	FrameName(frame libprof.FrameID) string
}

type MetricsReporter interface {
	ReportMetrics(timestamp uint32, ids []uint32, values []int64)
}
