// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package sampler

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalprof/evalprof/libprof"
)

type fakeTimes struct {
	monitorInterval time.Duration
}

func defaultTimes() *fakeTimes {
	return &fakeTimes{monitorInterval: 1 * time.Hour}
}

func (ft *fakeTimes) MonitorInterval() time.Duration { return ft.monitorInterval }

// steadyWalker always reports the same call stack.
type steadyWalker struct {
	stack []libprof.FrameID
}

func (w *steadyWalker) CaptureStack(buf []libprof.FrameID) int { return copy(buf, w.stack) }
func (w *steadyWalker) IsNameable(libprof.FrameID) bool        { return true }

// scriptedWalker replays a fixed sequence of stacks, one per capture,
// innermost frame first.
type scriptedWalker struct {
	stacks     [][]libprof.FrameID
	pos        int
	unnameable map[libprof.FrameID]bool
}

func (w *scriptedWalker) CaptureStack(buf []libprof.FrameID) int {
	if len(w.stacks) == 0 {
		return 0
	}
	st := w.stacks[w.pos%len(w.stacks)]
	w.pos++
	return copy(buf, st)
}

func (w *scriptedWalker) IsNameable(frame libprof.FrameID) bool {
	return !w.unnameable[frame]
}

func newTestSampler(t *testing.T, walker StackWalker, depth, slots int) *Sampler {
	t.Helper()
	s, err := New(Config{
		Walker:        walker,
		MaxStackDepth: depth,
		SlotHeapSize:  slots,
		Intervals:     defaultTimes(),
	})
	require.NoError(t, err)
	return s
}

// startPaused arms the sampler with an interval long enough that the timer
// never fires during the test, so ticks can be driven by hand.
func startPaused(t *testing.T, s *Sampler) {
	t.Helper()
	require.NoError(t, s.Start(context.Background(), time.Hour))
	t.Cleanup(s.Reset)
}

func frameKey(frames []libprof.FrameID) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = strconv.FormatUint(uint64(f), 10)
	}
	return strings.Join(parts, ",")
}

// stackCounts flattens the live stacks of a snapshot into a map from the
// comma separated frame IDs to the sample count.
func stackCounts(snap *libprof.Snapshot) map[string]uint64 {
	counts := make(map[string]uint64)
	for _, st := range snap.LiveStacks() {
		counts[frameKey(st.Frames)] = st.Count
	}
	return counts
}

func TestNewAppliesDefaults(t *testing.T) {
	s, err := New(Config{Walker: &steadyWalker{}, Intervals: defaultTimes()})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxStackDepth, s.cfg.MaxStackDepth)
	assert.Equal(t, DefaultSlotHeapSize, s.cfg.SlotHeapSize)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, libprof.ModeNone, s.Mode())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := map[string]Config{
		"no walker":    {Intervals: defaultTimes()},
		"no intervals": {Walker: &steadyWalker{}},
		"negative depth": {
			Walker: &steadyWalker{}, Intervals: defaultTimes(),
			MaxStackDepth: -1,
		},
		"negative pool size": {
			Walker: &steadyWalker{}, Intervals: defaultTimes(),
			SlotHeapSize: -3,
		},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestStartRejectsInvalidInterval(t *testing.T) {
	s := newTestSampler(t, &steadyWalker{stack: []libprof.FrameID{1}}, 4, 8)

	require.ErrorIs(t, s.Start(context.Background(), 0), ErrInvalidInterval)
	require.ErrorIs(t, s.Start(context.Background(), -time.Millisecond),
		ErrInvalidInterval)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, libprof.ModeNone, s.Mode())
}

func TestSampleAggregation(t *testing.T) {
	w := &scriptedWalker{stacks: [][]libprof.FrameID{
		{1, 2, 3},
		{1, 2, 3},
		{9, 2, 3},
	}}
	s := newTestSampler(t, w, 3, 8)
	startPaused(t, s)
	for range 3 {
		s.sampleOnce()
	}
	s.Stop()

	snap := s.TakeSnapshot()
	assert.Equal(t, libprof.ModeSample, snap.Mode)
	assert.NotEqual(t, uuid.Nil, snap.SessionID)
	assert.Equal(t, time.Hour, snap.SampleInterval)
	assert.False(t, snap.StartTime.IsZero())
	assert.False(t, snap.StopTime.IsZero())
	assert.Equal(t, uint64(3), snap.SampleCount)

	require.NotEmpty(t, snap.Stacks)
	assert.True(t, snap.Stacks[0].IsOthers())
	assert.Zero(t, snap.Stacks[0].Count)

	assert.Equal(t, map[string]uint64{
		"1,2,3": 2,
		"9,2,3": 1,
	}, stackCounts(snap))
}

func TestUnnameableFramesLeaveHoles(t *testing.T) {
	w := &scriptedWalker{
		stacks: [][]libprof.FrameID{
			{1, 100, 3},
			{1, 100, 3},
			{1, 3},
		},
		unnameable: map[libprof.FrameID]bool{100: true},
	}
	s := newTestSampler(t, w, 3, 8)
	startPaused(t, s)
	for range 3 {
		s.sampleOnce()
	}

	// The hole left by frame 100 keeps frame 3 at the third position, so
	// the capture stays distinct from the genuinely shorter [1 3] stack.
	// The exported backtrace ends at the hole.
	assert.Equal(t, map[string]uint64{
		"1":   2,
		"1,3": 1,
	}, stackCounts(s.TakeSnapshot()))
}

func TestDiscardsWhenLeafUnnameable(t *testing.T) {
	w := &scriptedWalker{
		stacks:     [][]libprof.FrameID{{100, 2, 3}},
		unnameable: map[libprof.FrameID]bool{100: true},
	}
	s := newTestSampler(t, w, 3, 8)
	startPaused(t, s)
	s.sampleOnce()

	snap := s.TakeSnapshot()
	assert.Zero(t, snap.SampleCount)
	assert.Empty(t, snap.LiveStacks())

	data := s.data.RLock()
	discarded := data.samplesDiscarded
	s.data.RUnlock(&data)
	assert.Equal(t, uint64(1), discarded)
}

func TestDiscardsEmptyCapture(t *testing.T) {
	s := newTestSampler(t, &scriptedWalker{}, 3, 8)
	startPaused(t, s)
	s.sampleOnce()

	assert.Zero(t, s.TakeSnapshot().SampleCount)
}

func TestRestartKeepsSession(t *testing.T) {
	w := &steadyWalker{stack: []libprof.FrameID{1, 2}}
	s := newTestSampler(t, w, 2, 8)
	startPaused(t, s)
	s.sampleOnce()
	s.sampleOnce()
	s.Stop()
	first := s.TakeSnapshot()

	// Re-arming keeps the pool and the session; only the start time and
	// the interval are new.
	require.NoError(t, s.Start(context.Background(), 30*time.Minute))
	s.sampleOnce()
	s.Stop()
	second := s.TakeSnapshot()

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, uint64(2), first.SampleCount)
	assert.Equal(t, uint64(3), second.SampleCount)
	assert.Equal(t, 30*time.Minute, second.SampleInterval)
	assert.False(t, second.StartTime.Before(first.StartTime))
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestSampler(t, &steadyWalker{stack: []libprof.FrameID{1}}, 2, 8)

	// Stopping an idle sampler changes nothing.
	s.Stop()
	assert.Equal(t, StateIdle, s.State())

	startPaused(t, s)
	s.Stop()
	first := s.TakeSnapshot()

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, first.StopTime, s.TakeSnapshot().StopTime)
}

func TestResetClearsEverything(t *testing.T) {
	w := &steadyWalker{stack: []libprof.FrameID{1, 2}}
	s := newTestSampler(t, w, 2, 8)
	startPaused(t, s)
	s.sampleOnce()
	first := s.TakeSnapshot()
	require.NotEqual(t, uuid.Nil, first.SessionID)

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, libprof.ModeNone, s.Mode())

	snap := s.TakeSnapshot()
	assert.Equal(t, libprof.ModeNone, snap.Mode)
	assert.Equal(t, uuid.Nil, snap.SessionID)
	assert.Zero(t, snap.SampleCount)
	assert.True(t, snap.StartTime.IsZero())
	assert.True(t, snap.StopTime.IsZero())
	require.Len(t, snap.Stacks, 1)
	assert.True(t, snap.Stacks[0].IsOthers())
	assert.Zero(t, snap.Stacks[0].Count)

	// The next start opens a fresh session.
	startPaused(t, s)
	assert.NotEqual(t, first.SessionID, s.TakeSnapshot().SessionID)
}

func TestConfigureOnlyWhileIdle(t *testing.T) {
	w := &steadyWalker{stack: []libprof.FrameID{1, 2, 3, 4}}
	s := newTestSampler(t, w, 4, 8)
	shallow := Config{
		Walker:        w,
		MaxStackDepth: 2,
		SlotHeapSize:  4,
		Intervals:     defaultTimes(),
	}

	startPaused(t, s)
	require.ErrorIs(t, s.Configure(shallow), ErrNotIdle)

	s.Stop()
	require.ErrorIs(t, s.Configure(shallow), ErrNotIdle)

	s.Reset()
	require.NoError(t, s.Configure(shallow))

	startPaused(t, s)
	s.sampleOnce()
	assert.Equal(t, map[string]uint64{"1,2": 1}, stackCounts(s.TakeSnapshot()))
}

func TestSnapshotOfRunningSessionStampsStopTime(t *testing.T) {
	s := newTestSampler(t, &steadyWalker{stack: []libprof.FrameID{1}}, 2, 4)
	startPaused(t, s)
	s.sampleOnce()

	snap := s.TakeSnapshot()
	assert.False(t, snap.StopTime.IsZero())
	assert.False(t, snap.StopTime.Before(snap.StartTime))
}

func TestCollectMetricsFlushesDeltas(t *testing.T) {
	w := &scriptedWalker{stacks: [][]libprof.FrameID{
		{1, 1}, {2, 2}, {3, 3},
	}}

	// A pool of two slots forces the third shape to evict.
	s := newTestSampler(t, w, 2, 2)
	startPaused(t, s)
	for range 3 {
		s.sampleOnce()
	}
	s.collectMetrics()

	data := s.data.RLock()
	taken := data.samplesTaken
	discarded := data.samplesDiscarded
	reported := data.reportedEvictions
	s.data.RUnlock(&data)
	assert.Zero(t, taken)
	assert.Zero(t, discarded)
	assert.Equal(t, uint64(1), reported)
}

func TestSamplingLoop(t *testing.T) {
	w := &steadyWalker{stack: []libprof.FrameID{7, 8, 9}}
	s := newTestSampler(t, w, 4, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, time.Millisecond))

	require.Eventually(t, func() bool {
		return s.TakeSnapshot().SampleCount >= 10
	}, 5*time.Second, 10*time.Millisecond)
	s.Stop()

	snap := s.TakeSnapshot()
	var sum uint64
	for _, st := range snap.Stacks {
		sum += st.Count
	}
	assert.Equal(t, snap.SampleCount, sum)
	assert.Equal(t, map[string]uint64{
		"7,8,9": snap.SampleCount,
	}, stackCounts(snap))
}

func TestContextCancellationStopsLoop(t *testing.T) {
	s := newTestSampler(t, &steadyWalker{stack: []libprof.FrameID{1}}, 2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, time.Millisecond))
	require.Eventually(t, func() bool {
		return s.TakeSnapshot().SampleCount >= 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-s.exited:
	case <-time.After(5 * time.Second):
		t.Fatal("sampling loop did not exit on context cancellation")
	}

	// The pool survives cancellation; only the timer is gone.
	count := s.TakeSnapshot().SampleCount
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, s.TakeSnapshot().SampleCount)

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.NotZero(t, s.TakeSnapshot().SampleCount)
}
