// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package reporter // import "github.com/evalprof/evalprof/reporter"

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/pprof/profile"

	"github.com/evalprof/evalprof/libprof"
)

// othersFunctionName is the synthetic frame that represents all samples
// whose stack was evicted from the slot pool.
const othersFunctionName = "[others]"

// ErrNoData is returned when a snapshot holds no profiling data.
var ErrNoData = errors.New("snapshot contains no profiling data")

// Convert renders a snapshot as a pprof CPU profile. Each live stack
// becomes one sample with its frames leaf-first; the others bucket becomes
// a sample with a single synthetic frame.
func Convert(snap *libprof.Snapshot, namer FrameNamer) (*profile.Profile, error) {
	if snap == nil || snap.Mode == libprof.ModeNone {
		return nil, ErrNoData
	}

	period := snap.SampleInterval.Nanoseconds()
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        period,
		TimeNanos:     snap.StartTime.UnixNano(),
		DurationNanos: int64(snap.StopTime.Sub(snap.StartTime)),
	}
	m := &profile.Mapping{ID: 1, HasFunctions: true}
	prof.Mapping = []*profile.Mapping{m}

	funcIdx := map[string]*profile.Function{}
	locIdx := map[libprof.FrameID]*profile.Location{}

	// locationFor interns one location per frame. The others bucket uses
	// the empty frame ID, which never occurs in an exported stack.
	locationFor := func(frame libprof.FrameID, name string) *profile.Location {
		if loc, ok := locIdx[frame]; ok {
			return loc
		}
		fn, ok := funcIdx[name]
		if !ok {
			fn = &profile.Function{
				ID:         uint64(len(prof.Function)) + 1,
				Name:       name,
				SystemName: name,
			}
			funcIdx[name] = fn
			prof.Function = append(prof.Function, fn)
		}
		loc := &profile.Location{
			ID:      uint64(len(prof.Location)) + 1,
			Mapping: m,
			Address: uint64(frame),
			Line:    []profile.Line{{Function: fn}},
		}
		locIdx[frame] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	for _, st := range snap.Stacks {
		if st.Count == 0 {
			continue
		}
		var locs []*profile.Location
		if st.IsOthers() {
			locs = []*profile.Location{
				locationFor(libprof.EmptyFrameID, othersFunctionName),
			}
		} else {
			locs = make([]*profile.Location, 0, len(st.Frames))
			for _, frame := range st.Frames {
				locs = append(locs, locationFor(frame, frameName(namer, frame)))
			}
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{int64(st.Count), int64(st.Count) * period},
		})
	}

	return prof, nil
}

// Write converts snap and writes it to w in the gzip compressed pprof
// format.
func Write(w io.Writer, snap *libprof.Snapshot, namer FrameNamer) error {
	prof, err := Convert(snap, namer)
	if err != nil {
		return err
	}
	if err = prof.Write(w); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}

// WriteFile is like Write, with the profile going to a newly created file at
// path.
func WriteFile(path string, snap *libprof.Snapshot, namer FrameNamer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating profile file: %w", err)
	}
	if err = Write(f, snap, namer); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
