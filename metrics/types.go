// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// Metric is the type for a metric id/value pair.
type Metric struct {
	ID    MetricID
	Value MetricValue
}

// MetricType classifies how a metric value is to be interpreted.
type MetricType int

const (
	// MetricTypeGauge marks metrics that report a point-in-time level.
	MetricTypeGauge MetricType = iota + 1
	// MetricTypeCounter marks metrics that report deltas to be accumulated.
	MetricTypeCounter
)

// MetricDefinition describes a metric: its stable ID, the instrument name
// registered with OTel and how values are to be interpreted.
type MetricDefinition struct {
	ID          MetricID
	Type        MetricType
	Name        string
	Description string
	Unit        string
}
