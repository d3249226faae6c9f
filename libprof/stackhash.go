// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package libprof // import "github.com/evalprof/evalprof/libprof"

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// StackHash is a 64-bit hash over an exported backtrace. It identifies a
// stack shape outside the sampling engine, for example as a cache key in
// reporters.
type StackHash uint64

// HashStack computes the StackHash of frames. The hash is order-sensitive:
// the same frames in a different call order produce a different value.
func HashStack(frames []FrameID) StackHash {
	buf := make([]byte, 8*len(frames))
	for i, frame := range frames {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(frame))
	}
	return StackHash(xxh3.Hash(buf))
}

// Hash32 returns a 32 bits hash of the value.
// It is expected to be used together with freelru.
func (h StackHash) Hash32() uint32 {
	return uint32(h)
}
