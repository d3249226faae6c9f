// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package libprof contains the foundation types shared by the profiler
// packages: frame identifiers, stack hashes, profiling modes and the
// snapshot format handed to reporters.
package libprof // import "github.com/evalprof/evalprof/libprof"

import "time"

// FrameID identifies a single host stack frame. Values are opaque tokens
// assigned by the host runtime; the profiler relies solely on identity
// comparison and never interprets them.
type FrameID uint64

// EmptyFrameID marks an unoccupied backtrace position. Hosts must not use it
// for real frames: capture buffers are pre-filled with it, and frames the
// host reports as not nameable keep it as a placeholder.
const EmptyFrameID FrameID = 0

// Void allows to use maps as sets without memory allocation for the values.
type Void struct{}

// UnixTime32 represents seconds since epoch.
type UnixTime32 uint32

// NowAsUInt32 is a convenience function to avoid code repetition
func NowAsUInt32() uint32 {
	return uint32(time.Now().Unix())
}
