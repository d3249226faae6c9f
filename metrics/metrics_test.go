// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeReporter struct {
	result chan []Metric
}

func (f fakeReporter) ReportMetrics(_ uint32, ids []uint32, values []int64) {
	metricsResult := make([]Metric, len(ids))

	for j := range ids {
		metricsResult[j].ID = MetricID(ids[j])
		metricsResult[j].Value = MetricValue(values[j])
	}

	// send the result back for comparison with client-side input
	f.result <- metricsResult
}

func TestMetrics(t *testing.T) {
	reporter := &fakeReporter{result: make(chan []Metric, 128)}
	SetReporter(reporter)

	// This makes sure that we have enough time to call Add/AddSlice below
	// within the same timestamp (second resolution).
	time.Sleep(1*time.Second - time.Duration(time.Now().Nanosecond()))

	inputMetrics := []Metric{
		{IDAgentGoRoutines, MetricValue(20)},
		{IDAgentHeapAlloc, MetricValue(1 << 20)},
		{IDSamplesTaken, MetricValue(15)},
		{IDLiveSlots, MetricValue(7)},
		{IDSlotEvictions, MetricValue(0)},
	}

	AddSlice(inputMetrics[0:2])                    // 20, 1M
	Add(inputMetrics[1].ID, inputMetrics[1].Value) // 1M, dropped
	Add(inputMetrics[2].ID, inputMetrics[2].Value) // 15
	AddSlice(inputMetrics[3:5])                    // 7; eviction counter 0 dropped
	AddSlice(inputMetrics[0:3])                    // all dropped as duplicates

	// Drop counter with 0 value as we don't expect it to appear in output
	inputMetrics = inputMetrics[:4]

	// trigger reporting
	time.Sleep(1 * time.Second)
	AddSlice(nil)

	timeout := time.NewTimer(3 * time.Second)
	select {
	case outputMetrics := <-reporter.result:
		assert.Equal(t, inputMetrics, outputMetrics)
	case <-timeout.C:
		// Timeout
		assert.Fail(t, "timeout - no metrics received in time")
	}
}

func TestGetDefinitions(t *testing.T) {
	defs := GetDefinitions()
	assert.Len(t, defs, IDMax-1)

	seen := make(map[MetricID]bool, len(defs))
	for _, md := range defs {
		assert.Greater(t, md.ID, MetricID(IDInvalid))
		assert.Less(t, md.ID, MetricID(IDMax))
		assert.False(t, seen[md.ID], "duplicate metric ID %d", md.ID)
		assert.NotEmpty(t, md.Name)
		seen[md.ID] = true
	}
}
