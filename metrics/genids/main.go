// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

type metricDef struct {
	Description string `json:"description"`
	MetricType  string `json:"type"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	FieldName   string `json:"field"`
	ID          uint32 `json:"id"`
	Obsolete    bool   `json:"obsolete"`
}

var metricTypes = map[string]string{
	"gauge":   "MetricTypeGauge",
	"counter": "MetricTypeCounter",
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <metrics.json> <output.go>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v", os.Args[1], err)
		os.Exit(1)
	}

	var metricDefs []metricDef
	if err = json.Unmarshal(input, &metricDefs); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling: %v", err)
		os.Exit(1)
	}

	var output bytes.Buffer
	output.WriteString(
		"// Code generated from metrics.json. DO NOT EDIT.\n" +
			"\n" +
			"package metrics\n" +
			"\n" +
			"// To add a new metric append an entry to metrics.json. ONLY APPEND !\n" +
			"// Then run 'go generate ./...' from the top directory.\n" +
			"\n" +
			"// Below are the different metric IDs that we currently implement.\n" +
			"const (\n")

	for _, m := range metricDefs {
		if m.Obsolete {
			continue
		}

		output.WriteString(
			fmt.Sprintf("\n\t// %s\n\tID%s = %d\n",
				m.Description, m.FieldName, m.ID))
	}

	output.WriteString(
		"\n\t// max number of ID values, keep this as *last entry*\n" +
			fmt.Sprintf("\tIDMax = %d\n)\n", len(metricDefs)))

	output.WriteString(
		"\n// definitions holds the properties of every metric the agent reports.\n" +
			"// The OTel instruments are built from this table at startup.\n" +
			"var definitions = []MetricDefinition{\n")

	for _, m := range metricDefs {
		if m.Obsolete || m.MetricType == "" {
			continue
		}

		mt, ok := metricTypes[m.MetricType]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown metric type %q for ID%s", m.MetricType, m.FieldName)
			os.Exit(1)
		}

		output.WriteString(fmt.Sprintf("\t{ID%s, %s, %q, %q, %q},\n",
			m.FieldName, mt, m.Name, m.Description, m.Unit))
	}
	output.WriteString("}\n")

	if err = os.WriteFile(os.Args[2], output.Bytes(), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}
}
