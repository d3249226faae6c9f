// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package libprof // import "github.com/evalprof/evalprof/libprof"

import (
	"time"

	"github.com/google/uuid"
)

// SampleStack is one aggregated call stack in a Snapshot together with the
// number of samples that observed it.
type SampleStack struct {
	// Frames holds the stack ordered innermost first, cut at the first
	// unoccupied position. It is empty for the others bucket.
	Frames []FrameID

	// Count is the number of samples attributed to this stack.
	Count uint64
}

// Hash returns the StackHash of the aggregated stack.
func (s *SampleStack) Hash() StackHash {
	return HashStack(s.Frames)
}

// IsOthers reports whether this entry is the synthetic bucket holding the
// counts of stacks that were evicted to keep the slot pool bounded.
func (s *SampleStack) IsOthers() bool {
	return len(s.Frames) == 0
}

// Snapshot is an immutable point-in-time export of the profiler state. Once
// taken it has no further relationship to the live sampling structures and
// may be retained, inspected or converted freely.
type Snapshot struct {
	// Mode tags the kind of profiling that produced the data.
	Mode Mode

	// SessionID identifies the sampling session the data belongs to. It is
	// regenerated every time sampling starts from an empty slot pool.
	SessionID uuid.UUID

	// StartTime is the wall-clock time sampling was last started.
	StartTime time.Time

	// StopTime is the wall-clock time sampling was stopped, or the export
	// time if sampling was still running when the snapshot was taken.
	StopTime time.Time

	// SampleInterval is the timer period between stack captures.
	SampleInterval time.Duration

	// SampleCount is the total number of samples attributed during the
	// session, including those folded into the others bucket.
	SampleCount uint64

	// Stacks lists the aggregated stacks. Stacks[0] is always the others
	// bucket; the remaining entries are the live stack shapes in no
	// particular order.
	Stacks []SampleStack
}

// LiveStacks returns the per-shape entries, excluding the others bucket.
func (s *Snapshot) LiveStacks() []SampleStack {
	if len(s.Stacks) == 0 {
		return nil
	}
	return s.Stacks[1:]
}

// OthersCount returns the sample count folded into the others bucket by
// eviction.
func (s *Snapshot) OthersCount() uint64 {
	if len(s.Stacks) == 0 {
		return 0
	}
	return s.Stacks[0].Count
}
