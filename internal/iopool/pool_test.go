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

package iopool

import "testing"

type widget struct {
	resetCount int
	value      int
}

func TestAcquireExhaustsAtTotal(t *testing.T) {
	p := New(2, 1, func() *widget { return &widget{} }, nil)

	a := p.Acquire(1)
	b := p.Acquire(1)
	if a == nil || b == nil {
		t.Fatal("expected two acquires to succeed out of a pool of 2")
	}
	if p.Acquire(1) != nil {
		t.Fatal("expected the third acquire to return nil once the pool is exhausted")
	}
}

func TestReleaseMakesValueAcquirableAgain(t *testing.T) {
	p := New(1, 1, func() *widget { return &widget{} }, nil)

	v := p.Acquire(1)
	if v == nil {
		t.Fatal("Acquire returned nil on a fresh pool of 1")
	}
	if p.Acquire(1) != nil {
		t.Fatal("expected exhaustion with one outstanding acquire on a pool of 1")
	}

	p.Release(1, v)
	if p.Acquire(1) == nil {
		t.Fatal("expected Acquire to succeed again after Release")
	}
}

func TestResetFnRunsOnEveryAcquire(t *testing.T) {
	p := New(1, 1, func() *widget { return &widget{} }, func(w *widget) {
		w.resetCount++
		w.value = 0
	})

	v := p.Acquire(1)
	v.value = 42
	p.Release(1, v)

	v2 := p.Acquire(1)
	if v2.value != 0 {
		t.Fatalf("value = %d, want 0 after reset", v2.value)
	}
	if v2.resetCount != 2 {
		t.Fatalf("resetCount = %d, want 2 (once for the first Acquire, once for the second)", v2.resetCount)
	}
}

func TestPerThreadCacheDoesNotLeakAcrossThreadIDs(t *testing.T) {
	p := New(4, 4, func() *widget { return &widget{} }, nil)

	a := p.Acquire(1)
	p.Release(1, a)

	// Thread 1's released value sits in thread 1's own cache; thread 2
	// must still be able to acquire from the shared remainder rather than
	// seeing thread 1's cache.
	if p.Acquire(2) == nil {
		t.Fatal("expected thread 2 to acquire from the shared pool independent of thread 1's cache")
	}
}

func TestTotalAndCacheSizeReportConfiguredValues(t *testing.T) {
	p := New(8, 3, func() *widget { return &widget{} }, nil)
	if p.Total() != 8 {
		t.Fatalf("Total() = %d, want 8", p.Total())
	}
	if p.CacheSize() != 3 {
		t.Fatalf("CacheSize() = %d, want 3", p.CacheSize())
	}
}

func TestValidateSizes(t *testing.T) {
	cases := []struct {
		total, cacheSize, threads int
		want                      bool
	}{
		{total: 10, cacheSize: 2, threads: 4, want: true},  // 10 >= 2*5
		{total: 9, cacheSize: 2, threads: 4, want: false},  // 9 < 2*5
		{total: 0, cacheSize: 0, threads: 0, want: true},   // 0 >= 0
		{total: 5, cacheSize: -1, threads: 0, want: false}, // negative cacheSize rejected
	}
	for _, c := range cases {
		if got := ValidateSizes(c.total, c.cacheSize, c.threads); got != c.want {
			t.Fatalf("ValidateSizes(%d, %d, %d) = %v, want %v", c.total, c.cacheSize, c.threads, got, c.want)
		}
	}
}
