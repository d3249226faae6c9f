// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package sampler // import "github.com/evalprof/evalprof/sampler"

import "github.com/evalprof/evalprof/metrics"

// collectMetrics flushes the per-interval counters. The slot pool state is
// read under the data lock, but the metrics package is only called after
// releasing it.
func (s *Sampler) collectMetrics() {
	data := s.data.WLock()
	samplesTaken := data.samplesTaken
	samplesDiscarded := data.samplesDiscarded
	data.samplesTaken = 0
	data.samplesDiscarded = 0

	var evictions, liveSlots uint64
	if data.heap != nil {
		evictions = data.heap.Evictions() - data.reportedEvictions
		data.reportedEvictions = data.heap.Evictions()
		liveSlots = uint64(data.heap.LiveCount())
	}
	s.data.WUnlock(&data)

	metrics.AddSlice([]metrics.Metric{
		{
			ID:    metrics.IDSamplesTaken,
			Value: metrics.MetricValue(samplesTaken),
		},
		{
			ID:    metrics.IDSamplesDiscarded,
			Value: metrics.MetricValue(samplesDiscarded),
		},
		{
			ID:    metrics.IDSlotEvictions,
			Value: metrics.MetricValue(evictions),
		},
		{
			ID:    metrics.IDLiveSlots,
			Value: metrics.MetricValue(liveSlots),
		},
	})
}
