// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics contains the code for receiving and reporting agent metrics.

Metric providers hand their values to Add() or AddSlice(). The package
buffers everything that arrives within the same second and flushes the
batch when the timestamp changes, so all values of one collection cycle
share one timestamp. Flushed batches feed the OTel instruments and, if one
was installed with SetReporter(), the reporter.

Metric IDs and their properties live in metrics.json; ids.go is generated
from it. IDs are stable: new metrics are appended, obsolete ones keep
their number.

# Directory Structure

The current directory structure looks like

	metrics
	├── agentmetrics    // collects runtime and rusage metrics of the agent itself
	├── genids          // generates ids.go from metrics.json
	├── doc.go          // this file
	├── ids.go          // generated metric IDs and definitions
	├── metrics.go      // implements Add(), AddSlice() and the flush cycle
	├── metrics.json    // the metric definitions
	├── metrics_test.go // tests the metrics package
	└── types.go        // definitions of Metric, MetricID, MetricValue

Example code to start the collection of agent metrics:

	stopMetrics, err := agentmetrics.Start(mainCtx, 5*time.Second)
	if err != nil {
		return err
	}
	defer stopMetrics()
*/
package metrics
