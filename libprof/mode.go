// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package libprof // import "github.com/evalprof/evalprof/libprof"

// Mode describes the kind of profiling that produced a set of samples.
// Statistical stack sampling is the only collection mode implemented;
// ModeNone tags a profiler that holds no data.
type Mode int

const (
	// ModeNone indicates that no profiling data has been collected.
	ModeNone Mode = iota
	// ModeSample indicates data collected by periodic stack sampling.
	ModeSample
)

const (
	modeNoneName   = "none"
	modeSampleName = "sample"
)

// ModeFromString maps a mode name back to its Mode. Unknown names map to
// ModeNone.
func ModeFromString(name string) Mode {
	if name == modeSampleName {
		return ModeSample
	}
	return ModeNone
}

// String implements the Stringer interface.
func (m Mode) String() string {
	if m == ModeSample {
		return modeSampleName
	}
	return modeNoneName
}
