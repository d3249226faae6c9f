// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package slotheap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalprof/evalprof/libprof"
)

// bt builds a fixed-depth backtrace from the given frames, padding the
// remainder with the empty sentinel.
func bt(depth int, frames ...libprof.FrameID) []libprof.FrameID {
	out := make([]libprof.FrameID, depth)
	copy(out, frames)
	return out
}

// liveCounts collects the live slots keyed by their full-window stack hash.
func liveCounts(h *Heap) map[libprof.StackHash]uint64 {
	counts := make(map[libprof.StackHash]uint64)
	h.VisitLive(func(frames []libprof.FrameID, count uint64) {
		counts[libprof.HashStack(frames)] = count
	})
	return counts
}

// requireExactAccounting verifies that no sample mass was lost or invented:
// the total equals the others aggregate plus the live slot counts.
func requireExactAccounting(t *testing.T, h *Heap) {
	t.Helper()
	var live uint64
	h.VisitLive(func(_ []libprof.FrameID, count uint64) {
		live += count
	})
	require.Equal(t, h.TotalCount(), h.OthersCount()+live)
}

func TestRecordAggregatesPerShape(t *testing.T) {
	h := New(8, 4)

	a := bt(4, 1, 2, 3)
	b := bt(4, 1, 2, 4)

	h.Record(a)
	h.Record(b)
	h.Record(a)
	h.Record(a)

	require.Equal(t, 2, h.LiveCount())
	require.Equal(t, uint64(4), h.TotalCount())
	require.Equal(t, uint64(0), h.OthersCount())

	counts := liveCounts(h)
	require.Equal(t, uint64(3), counts[libprof.HashStack(a)])
	require.Equal(t, uint64(1), counts[libprof.HashStack(b)])
	requireExactAccounting(t, h)
}

func TestEvictionFoldsMinimumIntoOthers(t *testing.T) {
	h := New(2, 3)

	fgh := bt(3, 1, 2, 3)
	fgi := bt(3, 1, 2, 4)
	fgj := bt(3, 1, 2, 5)

	for range 5 {
		h.Record(fgh)
	}
	h.Record(fgj)

	// The pool is full now: the first record of a third distinct shape must
	// evict the least-counted slot.
	for range 3 {
		h.Record(fgi)
	}

	require.Equal(t, uint64(9), h.TotalCount())
	require.Equal(t, uint64(1), h.OthersCount())
	require.Equal(t, uint64(1), h.Evictions())
	require.Equal(t, 2, h.LiveCount())

	counts := liveCounts(h)
	require.Equal(t, uint64(5), counts[libprof.HashStack(fgh)])
	require.Equal(t, uint64(3), counts[libprof.HashStack(fgi)])
	require.NotContains(t, counts, libprof.HashStack(fgj))
	requireExactAccounting(t, h)
}

func TestEvictionFreesExactlyOneSlot(t *testing.T) {
	const capacity = 16
	h := New(capacity, 2)

	for i := range capacity {
		h.Record(bt(2, libprof.FrameID(i+1), 100))
	}
	require.Equal(t, capacity, h.LiveCount())
	require.Equal(t, uint64(0), h.Evictions())

	h.Record(bt(2, libprof.FrameID(capacity+1), 100))

	require.Equal(t, capacity, h.LiveCount())
	require.Equal(t, uint64(1), h.Evictions())
	require.Equal(t, uint64(1), h.OthersCount())
	requireExactAccounting(t, h)
}

func TestEvictionTieBreak(t *testing.T) {
	// Multiple slots tie at the minimum count. Which of them goes is scan
	// order over the pool, an implementation detail rather than a contract:
	// this test pins the current behavior (earliest allocated goes first)
	// so accidental changes surface.
	h := New(2, 1)

	first := bt(1, 10)
	second := bt(1, 20)
	third := bt(1, 30)

	h.Record(first)
	h.Record(second)
	h.Record(third)

	counts := liveCounts(h)
	require.NotContains(t, counts, libprof.HashStack(first))
	require.Contains(t, counts, libprof.HashStack(second))
	require.Contains(t, counts, libprof.HashStack(third))
	require.Equal(t, uint64(1), h.OthersCount())
	requireExactAccounting(t, h)
}

func TestSentinelPositionsDistinguishShapes(t *testing.T) {
	h := New(4, 3)

	holeInMiddle := []libprof.FrameID{7, libprof.EmptyFrameID, 9}
	holeAtEnd := []libprof.FrameID{7, 9, libprof.EmptyFrameID}

	h.Record(holeInMiddle)
	h.Record(holeAtEnd)
	h.Record(holeInMiddle)

	require.Equal(t, 2, h.LiveCount())
	counts := liveCounts(h)
	require.Equal(t, uint64(2), counts[libprof.HashStack(holeInMiddle)])
	require.Equal(t, uint64(1), counts[libprof.HashStack(holeAtEnd)])
}

func TestRecordStressKeepsAccountingExact(t *testing.T) {
	const capacity = 8
	h := New(capacity, 2)

	// Cycle through far more shapes than the pool can hold so slots are
	// evicted and reallocated continuously.
	var recorded uint64
	for range 5 {
		for i := range 64 {
			h.Record(bt(2, libprof.FrameID(i+1), libprof.FrameID(i+101)))
			recorded++
			requireExactAccounting(t, h)
		}
	}

	require.Equal(t, recorded, h.TotalCount())
	require.Equal(t, capacity, h.LiveCount())

	// At most one live slot per shape, even after heavy slot churn.
	seen := make(map[libprof.StackHash]int)
	h.VisitLive(func(frames []libprof.FrameID, _ uint64) {
		seen[libprof.HashStack(frames)]++
	})
	for hash, n := range seen {
		require.Equalf(t, 1, n, "shape %x held by %d slots", uint64(hash), n)
	}
}

func TestManyShapesAcrossChains(t *testing.T) {
	// 500 shapes over 128 buckets forces multi-entry chains; per-shape
	// counts must stay exact regardless of collisions.
	h := New(600, 4)

	for i := 1; i <= 500; i++ {
		shape := bt(4, libprof.FrameID(i), libprof.FrameID(i%13+600))
		for range i%7 + 1 {
			h.Record(shape)
		}
	}

	require.Equal(t, 500, h.LiveCount())
	require.Equal(t, uint64(0), h.OthersCount())

	counts := liveCounts(h)
	for i := 1; i <= 500; i++ {
		shape := bt(4, libprof.FrameID(i), libprof.FrameID(i%13+600))
		require.Equal(t, uint64(i%7+1), counts[libprof.HashStack(shape)])
	}
	requireExactAccounting(t, h)
}

func TestVisitLivePassesFullWindow(t *testing.T) {
	h := New(2, 5)
	h.Record(bt(5, 1, 2))

	visited := 0
	h.VisitLive(func(frames []libprof.FrameID, count uint64) {
		visited++
		require.Len(t, frames, 5)
		require.Equal(t, libprof.FrameID(1), frames[0])
		require.Equal(t, libprof.FrameID(2), frames[1])
		require.Equal(t, libprof.EmptyFrameID, frames[2])
		require.Equal(t, uint64(1), count)
	})
	require.Equal(t, 1, visited)
}

func TestNewRejectsInvalidSizing(t *testing.T) {
	require.Panics(t, func() { New(0, 16) })
	require.Panics(t, func() { New(10, 0) })
}

func TestRecordRejectsWrongDepth(t *testing.T) {
	h := New(4, 3)
	require.Panics(t, func() { h.Record([]libprof.FrameID{1, 2}) })
}

func BenchmarkRecord(b *testing.B) {
	h := New(1024, 16)
	shapes := make([][]libprof.FrameID, 256)
	for i := range shapes {
		shapes[i] = bt(16, libprof.FrameID(i+1), 2, 3, 4, 5)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Record(shapes[i%len(shapes)])
	}
}

func BenchmarkRecordWithEvictions(b *testing.B) {
	h := New(64, 16)
	shapes := make([][]libprof.FrameID, 256)
	for i := range shapes {
		shapes[i] = bt(16, libprof.FrameID(i+1), 2, 3, 4, 5)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Record(shapes[i%len(shapes)])
	}
}
