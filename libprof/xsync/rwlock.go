// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package xsync provides a lock wrapper that couples a mutex with the data
// it protects, so the data cannot be reached without holding the lock.
package xsync // import "github.com/evalprof/evalprof/libprof/xsync"

import "sync"

// RWMutex is a thin wrapper around sync.RWMutex that hides away the data it
// protects to ensure it's not accidentally accessed without actually holding
// the lock.
//
// The profiler uses it as its interrupt mask: the sampling tick and the
// foreground operations (snapshot, reset) are the only two mutators of the
// shared slot pool, and each may only touch it through the pointer handed
// out while the lock is held. There is no other path to the guarded data, so
// a forgotten lock acquisition fails to compile instead of racing, and a
// forgotten unlock trips immediately because the unlock call invalidates the
// borrowed pointer.
type RWMutex[T any] struct {
	guarded T
	mutex   sync.RWMutex
}

// NewRWMutex creates a new read-write mutex.
func NewRWMutex[T any](guarded T) RWMutex[T] {
	return RWMutex[T]{
		guarded: guarded,
	}
}

// RLock locks the mutex for reading, returning a pointer to the protected data.
//
// The caller must not write through the returned pointer and must not let it
// escape the scope in which it was created, other than temporarily borrowing
// it to callees that do not retain it.
func (mtx *RWMutex[T]) RLock() *T {
	mtx.mutex.RLock()
	return &mtx.guarded
}

// RUnlock unlocks the mutex after previously being locked by RLock.
//
// Pass a reference to the pointer returned from RLock here to ensure it is
// invalidated.
func (mtx *RWMutex[T]) RUnlock(ref **T) {
	*ref = nil
	mtx.mutex.RUnlock()
}

// WLock locks the mutex for writing, returning a pointer to the protected data.
//
// The caller must not let the returned pointer escape the scope in which it
// was created, other than temporarily borrowing it to callees that do not
// retain it.
func (mtx *RWMutex[T]) WLock() *T {
	mtx.mutex.Lock()
	return &mtx.guarded
}

// WUnlock unlocks the mutex after previously being locked by WLock.
//
// Pass a reference to the pointer returned from WLock here to ensure it is
// invalidated.
func (mtx *RWMutex[T]) WUnlock(ref **T) {
	*ref = nil
	mtx.mutex.Unlock()
}
