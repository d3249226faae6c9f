// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package sampler drives the statistical profiler: it owns the sampling
// timer, captures a call stack on every tick and aggregates the captures
// in a fixed-capacity slot pool.
package sampler // import "github.com/evalprof/evalprof/sampler"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/evalprof/evalprof/libprof"
	"github.com/evalprof/evalprof/libprof/xsync"
	"github.com/evalprof/evalprof/metrics"
	"github.com/evalprof/evalprof/slotheap"
	"github.com/evalprof/evalprof/times"
)

const (
	// DefaultMaxStackDepth bounds how many frames of a capture are kept.
	DefaultMaxStackDepth = 16

	// DefaultSlotHeapSize is the default capacity of the slot pool.
	DefaultSlotHeapSize = 10000
)

var (
	// ErrInvalidConfig is returned by New and Configure for configurations
	// that fail validation.
	ErrInvalidConfig = errors.New("invalid sampler configuration")

	// ErrInvalidInterval is returned by Start for non-positive sampling
	// intervals.
	ErrInvalidInterval = errors.New("sampling interval must be positive")

	// ErrNotIdle is returned by Configure while the sampler still holds
	// profiling data. Call Reset first.
	ErrNotIdle = errors.New("sampler is not idle")
)

// Compile time check to make sure times.Times satisfies the interface.
var _ Times = (*times.Times)(nil)

// Times is a subset of the time information provided by the times package.
type Times interface {
	MonitorInterval() time.Duration
}

// StackWalker captures the host program's current call stack. It is the
// only knowledge the sampler has about the program being profiled.
type StackWalker interface {
	// CaptureStack fills buf with the frames of the currently executing
	// call stack, innermost frame first, and returns the number of
	// positions it wrote. Implementations must treat the call like an
	// interrupt: bounded work, no blocking, no allocation.
	CaptureStack(buf []libprof.FrameID) int

	// IsNameable reports whether a captured frame can be resolved to a
	// name. Frames that can't are kept as holes in the recorded stack
	// so that the positions of the remaining frames stay meaningful.
	IsNameable(frame libprof.FrameID) bool
}

// State describes the sampler lifecycle.
type State int

const (
	// StateIdle means no slot pool is allocated and no timer is armed.
	StateIdle State = iota

	// StateSampling means the timer is armed and ticks are being recorded.
	StateSampling

	// StateStopped means the timer is disarmed but the slot pool is
	// retained and can still be snapshotted or re-armed.
	StateStopped
)

// String converts the state into a readable string.
func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Config steers a Sampler instance.
type Config struct {
	// Walker captures the host's call stack on every timer tick.
	Walker StackWalker

	// MaxStackDepth limits how many frames of a capture are recorded.
	// Deeper captures are truncated at the innermost MaxStackDepth
	// frames. Defaults to DefaultMaxStackDepth if zero.
	MaxStackDepth int

	// SlotHeapSize is the capacity of the slot pool, i.e. how many
	// distinct stack shapes can be tracked at the same time. Defaults
	// to DefaultSlotHeapSize if zero.
	SlotHeapSize int

	// Intervals supplies the metric collection interval.
	Intervals Times
}

func (cfg *Config) applyDefaults() {
	if cfg.MaxStackDepth == 0 {
		cfg.MaxStackDepth = DefaultMaxStackDepth
	}
	if cfg.SlotHeapSize == 0 {
		cfg.SlotHeapSize = DefaultSlotHeapSize
	}
}

func (cfg *Config) validate() error {
	if cfg.Walker == nil {
		return fmt.Errorf("%w: no stack walker", ErrInvalidConfig)
	}
	if cfg.MaxStackDepth <= 0 {
		return fmt.Errorf("%w: max stack depth %d", ErrInvalidConfig,
			cfg.MaxStackDepth)
	}
	if cfg.SlotHeapSize <= 0 {
		return fmt.Errorf("%w: slot heap size %d", ErrInvalidConfig,
			cfg.SlotHeapSize)
	}
	if cfg.Intervals == nil {
		return fmt.Errorf("%w: no intervals", ErrInvalidConfig)
	}
	return nil
}

// shared is the state touched by both the sampling loop and the foreground
// operations. The RWMutex around it is the moral equivalent of masking the
// profiling interrupt: the loop writes under the exclusive lock, snapshot
// readers share the read lock.
type shared struct {
	heap *slotheap.Heap
	buf  []libprof.FrameID

	mode           libprof.Mode
	sessionID      uuid.UUID
	startTime      time.Time
	stopTime       time.Time
	sampleInterval time.Duration

	// Counters reported by collectMetrics. samplesTaken and
	// samplesDiscarded are deltas and are zeroed on collection;
	// reportedEvictions remembers the last cumulative eviction count
	// read from the heap.
	samplesTaken      uint64
	samplesDiscarded  uint64
	reportedEvictions uint64
}

// Sampler aggregates periodic stack captures into a slot pool and exposes
// the lifecycle operations of the profiler.
type Sampler struct {
	// mu serializes the foreground operations (Start, Stop, Reset,
	// Configure). The sampling loop never takes it.
	mu sync.Mutex

	cfg Config

	// data guards the state shared with the sampling loop.
	data xsync.RWMutex[shared]

	// Loop lifecycle, only touched under mu. stopSignal asks the
	// current loop to exit, exited is closed by the loop on the way out.
	stopSignal chan libprof.Void
	exited     chan libprof.Void

	state State
}

// New creates a Sampler in the idle state.
func New(cfg Config) (*Sampler, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		cfg:  cfg,
		data: xsync.NewRWMutex(shared{}),
	}, nil
}

// Configure replaces the sampler configuration. Stack depth and pool
// capacity shape the preallocated memory, so reconfiguration is only
// permitted while the sampler is idle and returns ErrNotIdle otherwise.
func (s *Sampler) Configure(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrNotIdle
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// Start arms the sampling timer with the given interval. Starting from the
// idle state allocates a fresh slot pool and begins a new session; starting
// while stopped or already sampling keeps the accumulated counts, restamps
// the session start time and reprograms the timer.
//
// The sampling loop also exits when ctx is canceled. That only disarms the
// timer: the pool stays available for snapshots until Reset is called.
func (s *Sampler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Retire the previous loop before reprogramming the timer so that
	// at most one loop runs at any time.
	s.stopLoopLocked()

	data := s.data.WLock()
	if data.heap == nil {
		data.heap = slotheap.New(s.cfg.SlotHeapSize, s.cfg.MaxStackDepth)
		data.buf = make([]libprof.FrameID, s.cfg.MaxStackDepth)
		data.sessionID = uuid.New()
		data.samplesTaken = 0
		data.samplesDiscarded = 0
		data.reportedEvictions = 0
	}
	data.mode = libprof.ModeSample
	data.startTime = time.Now()
	data.stopTime = time.Time{}
	data.sampleInterval = interval
	sessionID := data.sessionID
	s.data.WUnlock(&data)

	s.startLoopLocked(ctx, interval)
	s.state = StateSampling

	log.Debugf("Armed sampling timer (interval: %v, session: %s)",
		interval, sessionID)
	return nil
}

// Stop disarms the sampling timer and stamps the session stop time. The
// slot pool is retained: snapshots keep working and Start resumes the same
// session. Stopping an idle or already stopped sampler is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSampling {
		return
	}
	s.stopLoopLocked()

	data := s.data.WLock()
	data.stopTime = time.Now()
	s.data.WUnlock(&data)

	s.state = StateStopped
	log.Debug("Disarmed sampling timer")
}

// Reset disarms the sampling timer, discards the slot pool and all session
// metadata and returns the sampler to the idle state. Resetting an idle
// sampler is a no-op.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Disarm first so no tick can race the teardown.
	s.stopLoopLocked()

	data := s.data.WLock()
	data.heap = nil
	data.buf = nil
	data.mode = libprof.ModeNone
	data.sessionID = uuid.Nil
	data.startTime = time.Time{}
	data.stopTime = time.Time{}
	data.sampleInterval = 0
	data.samplesTaken = 0
	data.samplesDiscarded = 0
	data.reportedEvictions = 0
	s.data.WUnlock(&data)

	if s.state != StateIdle {
		log.Debug("Profiler state reset")
	}
	s.state = StateIdle
}

// Mode reports whether the sampler currently holds profiling data.
func (s *Sampler) Mode() libprof.Mode {
	data := s.data.RLock()
	defer s.data.RUnlock(&data)
	return data.mode
}

// State returns the current lifecycle state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TakeSnapshot exports the current profiling data. It can be called in any
// state and concurrently with sampling: an idle sampler yields a snapshot
// with no session metadata and only the empty others bucket.
func (s *Sampler) TakeSnapshot() *libprof.Snapshot {
	snap := s.exportSnapshot()
	metrics.Add(metrics.IDSnapshotsTaken, 1)
	return snap
}

func (s *Sampler) exportSnapshot() *libprof.Snapshot {
	data := s.data.RLock()
	defer s.data.RUnlock(&data)

	snap := &libprof.Snapshot{
		Mode:           data.mode,
		SessionID:      data.sessionID,
		StartTime:      data.startTime,
		StopTime:       data.stopTime,
		SampleInterval: data.sampleInterval,
	}

	if data.heap == nil {
		snap.Stacks = []libprof.SampleStack{{}}
		return snap
	}

	snap.SampleCount = data.heap.TotalCount()
	stacks := make([]libprof.SampleStack, 0, data.heap.LiveCount()+1)
	stacks = append(stacks, libprof.SampleStack{
		Count: data.heap.OthersCount(),
	})
	data.heap.VisitLive(func(bt []libprof.FrameID, count uint64) {
		stacks = append(stacks, libprof.SampleStack{
			Frames: exportBacktrace(bt),
			Count:  count,
		})
	})
	snap.Stacks = stacks

	// A snapshot of a running session has no stop time yet; use the
	// export time so that durations stay computable.
	if snap.StopTime.IsZero() {
		snap.StopTime = time.Now()
	}
	return snap
}

// exportBacktrace copies bt up to the first unoccupied position. Holes
// left by unnameable frames end the exported stack: the slot pool keyed
// the shape on the full window, but consumers only care about the leading
// resolvable frames.
func exportBacktrace(bt []libprof.FrameID) []libprof.FrameID {
	n := 0
	for n < len(bt) && bt[n] != libprof.EmptyFrameID {
		n++
	}
	out := make([]libprof.FrameID, n)
	copy(out, bt)
	return out
}

// sampleOnce is the body of a single timer tick: capture the stack, blank
// out frames that can't be named and fold the result into the slot pool.
func (s *Sampler) sampleOnce() {
	data := s.data.WLock()
	defer s.data.WUnlock(&data)

	buf := data.buf
	for i := range buf {
		buf[i] = libprof.EmptyFrameID
	}
	n := min(s.cfg.Walker.CaptureStack(buf), len(buf))
	for i := 0; i < n; i++ {
		if buf[i] != libprof.EmptyFrameID && !s.cfg.Walker.IsNameable(buf[i]) {
			buf[i] = libprof.EmptyFrameID
		}
	}
	if buf[0] == libprof.EmptyFrameID {
		// Nothing nameable at the leaf: the capture carries no signal.
		data.samplesDiscarded++
		return
	}
	data.heap.Record(buf)
	data.samplesTaken++
}

// startLoopLocked spawns the sampling loop. Callers must hold mu and must
// have retired any previous loop.
func (s *Sampler) startLoopLocked(ctx context.Context, interval time.Duration) {
	stopSignal := make(chan libprof.Void)
	exited := make(chan libprof.Void)
	s.stopSignal = stopSignal
	s.exited = exited

	monitorInterval := s.cfg.Intervals.MonitorInterval()

	go func() {
		defer close(exited)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		metricsTicker := time.NewTicker(monitorInterval)
		defer metricsTicker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sampleOnce()
			case <-metricsTicker.C:
				s.collectMetrics()
			case <-stopSignal:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// stopLoopLocked asks the current loop to exit and waits until it has.
// After return no tick is in flight. Callers must hold mu but must not
// hold the data lock, or a tick blocked on it could never finish.
func (s *Sampler) stopLoopLocked() {
	if s.stopSignal == nil {
		return
	}
	close(s.stopSignal)
	<-s.exited
	s.stopSignal = nil
	s.exited = nil
}
