// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/evalprof/evalprof/internal/controller"

import (
	"time"

	"github.com/evalprof/evalprof/util"
)

// stackCacheSize defines the maximum number of elements for the formatted
// stack cache in the reporter.
// The cache has a size-"formatting overhead" trade-off: every miss resolves
// and joins the frame names of one stack again. The sampler takes one capture
// per sample interval, so reportInterval/sampleInterval bounds how many
// distinct stacks a single report can carry, and we keep a few report
// intervals worth of them. For typical/small sampling rates this would lead
// to a tiny cache that thrashes as soon as the workload cycles through more
// stacks than one interval shows. A minimum size is therefore used here.
func stackCacheSize(reportInterval, sampleInterval time.Duration) uint32 {
	const (
		stackCacheIntervals = 6
		stackCacheMinSize   = 256
	)

	maxElements := maxElementsPerInterval(reportInterval, sampleInterval)

	size := maxElements * uint32(stackCacheIntervals)
	if size < stackCacheMinSize {
		size = stackCacheMinSize
	}
	return util.NextPowerOfTwo(size)
}

func maxElementsPerInterval(reportInterval, sampleInterval time.Duration) uint32 {
	if sampleInterval <= 0 {
		return 0
	}
	return uint32(reportInterval / sampleInterval)
}
