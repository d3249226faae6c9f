// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package workload implements a synthetic interpreted program for the
// profiler to observe. The program executes a weighted script of call
// stack phases in its own goroutine and exposes the currently executing
// stack through the stack walker contract.
package workload // import "github.com/evalprof/evalprof/workload"

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/evalprof/evalprof/libprof"
	"github.com/evalprof/evalprof/metrics"
	"github.com/evalprof/evalprof/reporter"
	"github.com/evalprof/evalprof/sampler"
)

const (
	// defaultStepDuration is how long one iteration dwells in its phase.
	defaultStepDuration = 2 * time.Millisecond

	// opsFlushBatch is the number of iterations after which the workload
	// operation counter is handed to the metrics package.
	opsFlushBatch = 64
)

// Compile time checks to make sure Program satisfies the interfaces.
var (
	_ sampler.StackWalker = (*Program)(nil)
	_ reporter.FrameNamer = (*Program)(nil)
)

// Phase describes one segment of the scripted program: the call stack the
// program executes, written outermost frame first, and its relative weight
// in the schedule. An empty string is an anonymous function, which the
// profiler cannot name.
type Phase struct {
	Stack  []string
	Weight int
}

// Config steers a Program.
type Config struct {
	// Phases scripts the program. Defaults to a built-in interpreter-like
	// script if empty.
	Phases []Phase

	// Seed makes the phase schedule reproducible.
	Seed uint64

	// StepDuration is how long one iteration dwells in its phase.
	// Defaults to defaultStepDuration if zero.
	StepDuration time.Duration
}

// phase is the compiled form of a Phase: frame IDs, innermost first.
type phase struct {
	stack  []libprof.FrameID
	weight int
}

// Program is a scripted synthetic program. It is safe to sample while Run
// executes the script.
type Program struct {
	step        time.Duration
	phases      []phase
	totalWeight int
	rng         *rand.Rand

	// names maps frame IDs (minus one) to function names. It is
	// immutable after New, so reads need no lock. Anonymous functions
	// have an empty name.
	names []string

	// mu guards current, the call stack of the running phase.
	mu      sync.Mutex
	current []libprof.FrameID
}

// defaultPhases models a small interpreter with uneven work: command
// dispatch dominates, rendering and garbage collection show up with
// smaller shares, and one anonymous hook exercises stacks the profiler
// cannot fully name.
func defaultPhases() []Phase {
	return []Phase{
		{Stack: []string{"main", "commandLoop", "executeCommand",
			"evalExpression"}, Weight: 5},
		{Stack: []string{"main", "commandLoop", "executeCommand",
			"evalExpression", "applyFunction"}, Weight: 3},
		{Stack: []string{"main", "commandLoop", "redisplay"}, Weight: 2},
		{Stack: []string{"main", "commandLoop", "redisplay",
			"renderGlyphs"}, Weight: 1},
		{Stack: []string{"main", "garbageCollect"}, Weight: 1},
		{Stack: []string{"main", "commandLoop", "", "runHook"}, Weight: 1},
	}
}

// New compiles the scripted phases into a runnable program.
func New(cfg Config) (*Program, error) {
	if len(cfg.Phases) == 0 {
		cfg.Phases = defaultPhases()
	}
	if cfg.StepDuration <= 0 {
		cfg.StepDuration = defaultStepDuration
	}

	p := &Program{
		step: cfg.StepDuration,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}

	// Named functions are interned; every anonymous occurrence gets a
	// frame of its own, like distinct lambdas would.
	byName := make(map[string]libprof.FrameID)
	intern := func(name string) libprof.FrameID {
		if name != "" {
			if id, ok := byName[name]; ok {
				return id
			}
		}
		p.names = append(p.names, name)
		id := libprof.FrameID(len(p.names))
		if name != "" {
			byName[name] = id
		}
		return id
	}

	for i, ph := range cfg.Phases {
		if len(ph.Stack) == 0 {
			return nil, fmt.Errorf("phase %d has an empty stack", i)
		}
		if ph.Weight <= 0 {
			return nil, fmt.Errorf("phase %d has weight %d", i, ph.Weight)
		}
		compiled := phase{
			stack:  make([]libprof.FrameID, len(ph.Stack)),
			weight: ph.Weight,
		}
		for j, name := range ph.Stack {
			// The script is outermost first, captures are
			// innermost first.
			compiled.stack[len(ph.Stack)-1-j] = intern(name)
		}
		p.phases = append(p.phases, compiled)
		p.totalWeight += ph.Weight
	}
	return p, nil
}

// Run executes the scripted program until ctx is canceled. Each iteration
// picks a phase proportional to its weight, installs its stack as the
// currently executing one and dwells there for one step.
func (p *Program) Run(ctx context.Context) error {
	var ops uint64
	defer func() {
		p.setCurrent(nil)
		if ops > 0 {
			metrics.Add(metrics.IDWorkloadOps, metrics.MetricValue(ops))
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		p.setCurrent(p.pickPhase().stack)

		// Dwelling caps the cancellation latency of Run at one step.
		time.Sleep(p.step)

		if ops++; ops >= opsFlushBatch {
			metrics.Add(metrics.IDWorkloadOps, metrics.MetricValue(ops))
			ops = 0
		}
	}
}

func (p *Program) pickPhase() *phase {
	n := p.rng.IntN(p.totalWeight)
	for i := range p.phases {
		if n -= p.phases[i].weight; n < 0 {
			return &p.phases[i]
		}
	}
	return &p.phases[len(p.phases)-1]
}

func (p *Program) setCurrent(stack []libprof.FrameID) {
	p.mu.Lock()
	p.current = stack
	p.mu.Unlock()
}

// CaptureStack implements sampler.StackWalker.
func (p *Program) CaptureStack(buf []libprof.FrameID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copy(buf, p.current)
}

// IsNameable implements sampler.StackWalker.
func (p *Program) IsNameable(frame libprof.FrameID) bool {
	idx := int(frame) - 1
	if idx < 0 || idx >= len(p.names) {
		return false
	}
	return p.names[idx] != ""
}

// FrameName implements reporter.FrameNamer.
func (p *Program) FrameName(frame libprof.FrameID) string {
	idx := int(frame) - 1
	if idx < 0 || idx >= len(p.names) || p.names[idx] == "" {
		return fmt.Sprintf("func_%x", uint64(frame))
	}
	return p.names[idx]
}

// NumFrames returns how many distinct frames the compiled script contains,
// anonymous ones included.
func (p *Program) NumFrames() int {
	return len(p.names)
}
