// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package iopool implements a process-wide bounded pool of reusable values
// plus a small per-thread cache, so the hot acquire/release path never
// contends across threads. It backs the fsdev operation-descriptor pool;
// the FUSE dispatcher keeps no request-descriptor pool.
package iopool

import "sync"

// ThreadID identifies the calling thread for the purposes of the per-thread
// cache. Callers mint these from whatever Thread abstraction they use; the
// pool never interprets the value.
type ThreadID uint64

// Pool is a bounded, process-wide pool of *T values with a small per-thread
// LIFO cache layered in front of it. Acquire pops from the calling thread's
// cache first and only falls back to the shared pool when the cache is
// empty; Release pushes back to the cache up to CacheSize, spilling excess
// back to the shared pool.
//
// A Pool must be created with New and must not be copied.
type Pool[T any] struct {
	newFn   func() *T
	resetFn func(*T)

	total     int
	cacheSize int

	mu     sync.Mutex
	shared []*T

	cachesMu sync.Mutex
	caches   map[ThreadID][]*T
}

// New creates a pool with room for total values total and up to cacheSize
// cached per distinct ThreadID that calls Acquire/Release. New calls newFn
// total times up front to fill the shared pool; resetFn (optional,
// may be nil) is invoked on a value before it is handed out again, so stale
// state from a previous use never leaks into a new one.
func New[T any](total, cacheSize int, newFn func() *T, resetFn func(*T)) *Pool[T] {
	p := &Pool[T]{
		newFn:     newFn,
		resetFn:   resetFn,
		total:     total,
		cacheSize: cacheSize,
		caches:    make(map[ThreadID][]*T),
	}

	p.shared = make([]*T, 0, total)
	for i := 0; i < total; i++ {
		p.shared = append(p.shared, newFn())
	}

	return p
}

// Acquire pops a value from tid's local cache, falling back to the shared
// pool. It returns nil if the pool is exhausted; callers surface this as a
// resource-exhaustion error (fsdev.KindNoBuffers), never a panic.
func (p *Pool[T]) Acquire(tid ThreadID) *T {
	p.cachesMu.Lock()
	cache := p.caches[tid]
	if n := len(cache); n > 0 {
		v := cache[n-1]
		p.caches[tid] = cache[:n-1]
		p.cachesMu.Unlock()

		if p.resetFn != nil {
			p.resetFn(v)
		}
		return v
	}
	p.cachesMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.shared)
	if n == 0 {
		return nil
	}

	v := p.shared[n-1]
	p.shared = p.shared[:n-1]

	if p.resetFn != nil {
		p.resetFn(v)
	}
	return v
}

// Release returns v to tid's local cache, spilling to the shared pool once
// the cache reaches CacheSize.
func (p *Pool[T]) Release(tid ThreadID, v *T) {
	p.cachesMu.Lock()
	cache := p.caches[tid]
	if len(cache) < p.cacheSize {
		p.caches[tid] = append(cache, v)
		p.cachesMu.Unlock()
		return
	}
	p.cachesMu.Unlock()

	p.mu.Lock()
	p.shared = append(p.shared, v)
	p.mu.Unlock()
}

// Total returns the pool's configured total size.
func (p *Pool[T]) Total() int { return p.total }

// CacheSize returns the pool's configured per-thread cache size.
func (p *Pool[T]) CacheSize() int { return p.cacheSize }

// ValidateSizes checks the pool_size >= cache_size * (threads+1) invariant
// required by spec before a pool of the given dimensions is created or
// reconfigured.
func ValidateSizes(total, cacheSize, threads int) bool {
	if cacheSize < 0 || total < 0 || threads < 0 {
		return false
	}
	return total >= cacheSize*(threads+1)
}
