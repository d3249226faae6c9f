// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package slotheap implements the profiler's aggregation engine: a
// fixed-capacity pool of backtrace slots indexed by a chained hash table,
// with least-count eviction into an "others" aggregate once the pool is
// exhausted.
//
// All memory is allocated up front in New. Record, the per-sample hot path,
// performs no allocation and completes in bounded time, which keeps it safe
// to call from the sampling tick. The engine does no locking of its own:
// callers serialize access, matching the single-mutator model of the
// sampling loop.
package slotheap // import "github.com/evalprof/evalprof/slotheap"

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/evalprof/evalprof/libprof"
)

// NumBuckets is the number of hash chains. It is a fixed design constant:
// chains over the slot pool absorb collisions, so the bucket array never
// needs to grow with the pool.
const NumBuckets = 128

// noSlot marks the absence of a pool index in chain links, the free list
// and the bucket heads.
const noSlot = int32(-1)

// slot is one pool entry describing a distinct backtrace shape. The frames
// themselves live in the shared arena, addressed by the entry's pool index.
// next doubles as the free list link while the entry is unused.
type slot struct {
	next  int32
	prev  int32
	count uint64
	used  bool
}

// Heap is the aggregation engine. It owns a pool of heapSize slots, each
// paired with a maxDepth window of the frame arena, and a bucket array of
// chain heads into the pool.
//
// Heap is not safe for concurrent use.
type Heap struct {
	maxDepth int

	slots   []slot
	frames  []libprof.FrameID
	buckets [NumBuckets]int32

	freeHead int32
	key      []byte

	totalCount  uint64
	othersCount uint64
	liveCount   int
	evictions   uint64
}

// New creates a Heap with capacity for heapSize distinct backtrace shapes
// of up to maxDepth frames each. Both values must be positive. This is the
// only place the engine allocates.
func New(heapSize, maxDepth int) *Heap {
	if heapSize <= 0 || maxDepth <= 0 {
		panic("slotheap: heapSize and maxDepth must be positive")
	}

	h := &Heap{
		maxDepth: maxDepth,
		slots:    make([]slot, heapSize),
		frames:   make([]libprof.FrameID, heapSize*maxDepth),
		key:      make([]byte, 8*maxDepth),
	}
	for i := range h.buckets {
		h.buckets[i] = noSlot
	}
	for i := range h.slots {
		h.slots[i].next = int32(i + 1)
		h.slots[i].prev = noSlot
	}
	h.slots[heapSize-1].next = noSlot
	h.freeHead = 0

	return h
}

// Record attributes one sample to the given backtrace, creating a slot for
// the shape on first sight. bt must hold exactly MaxDepth entries with
// unoccupied positions set to libprof.EmptyFrameID; the sentinels are part
// of the recorded shape.
func (h *Heap) Record(bt []libprof.FrameID) {
	if len(bt) != h.maxDepth {
		panic("slotheap: backtrace length does not match configured depth")
	}
	idx := h.ensureSlot(bt)
	h.slots[idx].count++
	h.totalCount++
}

// MaxDepth returns the configured backtrace depth.
func (h *Heap) MaxDepth() int {
	return h.maxDepth
}

// Capacity returns the configured pool size.
func (h *Heap) Capacity() int {
	return len(h.slots)
}

// TotalCount returns the number of samples attributed so far, including
// those folded into the others aggregate.
func (h *Heap) TotalCount() uint64 {
	return h.totalCount
}

// OthersCount returns the number of samples whose slots were evicted.
func (h *Heap) OthersCount() uint64 {
	return h.othersCount
}

// LiveCount returns the number of distinct shapes currently held.
func (h *Heap) LiveCount() int {
	return h.liveCount
}

// Evictions returns how often a slot was evicted to make room.
func (h *Heap) Evictions() uint64 {
	return h.evictions
}

// VisitLive calls fn for every live slot in pool order. bt is the full
// fixed-depth backtrace window including trailing sentinels and is only
// valid for the duration of the call.
func (h *Heap) VisitLive(fn func(bt []libprof.FrameID, count uint64)) {
	for i := range h.slots {
		if h.slots[i].used {
			fn(h.backtrace(int32(i)), h.slots[i].count)
		}
	}
}

// backtrace returns the arena window of pool entry idx.
func (h *Heap) backtrace(idx int32) []libprof.FrameID {
	off := int(idx) * h.maxDepth
	return h.frames[off : off+h.maxDepth]
}

// hashBacktrace folds all maxDepth frame identities into an order-sensitive
// 64-bit hash. The scratch key buffer makes this allocation-free.
func (h *Heap) hashBacktrace(bt []libprof.FrameID) uint64 {
	for i, frame := range bt {
		binary.LittleEndian.PutUint64(h.key[8*i:], uint64(frame))
	}
	return xxh3.Hash(h.key)
}

func (h *Heap) bucketIndex(bt []libprof.FrameID) int32 {
	return int32(h.hashBacktrace(bt) % NumBuckets)
}

// backtraceEqual compares all maxDepth positions by frame identity. The
// scan covers unoccupied positions too: the sentinel is part of the shape.
func backtraceEqual(a, b []libprof.FrameID) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ensureSlot returns the pool index of the slot holding bt, appending a
// fresh slot at the tail of the shape's hash chain if none exists yet.
func (h *Heap) ensureSlot(bt []libprof.FrameID) int32 {
	bucket := h.bucketIndex(bt)

	for idx := h.buckets[bucket]; idx != noSlot; idx = h.slots[idx].next {
		if backtraceEqual(h.backtrace(idx), bt) {
			return idx
		}
	}

	// Allocation may evict a slot out of this very chain, so the tail is
	// located only afterwards.
	idx := h.allocateSlot()
	copy(h.backtrace(idx), bt)
	s := &h.slots[idx]
	s.count = 0
	s.next = noSlot

	tail := noSlot
	for cur := h.buckets[bucket]; cur != noSlot; cur = h.slots[cur].next {
		tail = cur
	}
	s.prev = tail
	if tail == noSlot {
		h.buckets[bucket] = idx
	} else {
		h.slots[tail].next = idx
	}
	h.liveCount++

	return idx
}

// allocateSlot pops the free list, evicting the least-counted live slot
// first if the pool is exhausted. Eviction frees exactly one slot, so a
// still-empty free list afterwards is an internal-consistency fault.
func (h *Heap) allocateSlot() int32 {
	if h.freeHead == noSlot {
		h.evictMinSlot()
	}

	idx := h.freeHead
	if idx == noSlot {
		panic("slotheap: no free slot after eviction")
	}
	h.freeHead = h.slots[idx].next
	h.slots[idx].used = true

	return idx
}

// evictMinSlot folds the live slot with the smallest count into the others
// aggregate and releases it. Ties keep the first minimum in pool order.
// Only one slot is evicted per call.
func (h *Heap) evictMinSlot() {
	victim := noSlot
	var minCount uint64
	for i := range h.slots {
		s := &h.slots[i]
		if !s.used {
			continue
		}
		if victim == noSlot || s.count < minCount {
			victim = int32(i)
			minCount = s.count
		}
	}
	if victim == noSlot {
		return
	}

	h.othersCount += minCount
	h.evictions++
	h.releaseSlot(victim)
}

// releaseSlot unlinks a live slot from its hash chain and pushes it onto
// the free list. When the slot heads its chain, the bucket is recomputed
// from the slot's own backtrace.
func (h *Heap) releaseSlot(idx int32) {
	s := &h.slots[idx]
	if s.prev != noSlot {
		h.slots[s.prev].next = s.next
	} else {
		h.buckets[h.bucketIndex(h.backtrace(idx))] = s.next
	}
	if s.next != noSlot {
		h.slots[s.next].prev = s.prev
	}

	s.used = false
	s.count = 0
	s.prev = noSlot
	s.next = h.freeHead
	h.freeHead = idx
	h.liveCount--
}
