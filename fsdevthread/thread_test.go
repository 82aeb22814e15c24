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

package fsdevthread

import (
	"testing"
	"time"
)

func TestIDsAreDistinctAndStable(t *testing.T) {
	a := NewLoop(1)
	b := NewLoop(1)
	if a.ID() == b.ID() {
		t.Fatalf("two distinct loops share ID %d", a.ID())
	}
	if a.ID() != a.ID() {
		t.Fatal("ID() is not stable across calls")
	}
}

func TestIsCurrentOnlyTrueDuringDequeuedExecution(t *testing.T) {
	l := NewLoop(1)
	if l.IsCurrent() {
		t.Fatal("IsCurrent true before any function has ever run")
	}

	var sawCurrent bool
	l.Post(func() {
		sawCurrent = l.IsCurrent()
	})
	l.PollOnce()

	if !sawCurrent {
		t.Fatal("IsCurrent false while a posted function was executing")
	}
	if l.IsCurrent() {
		t.Fatal("IsCurrent still true after the posted function returned")
	}
}

func TestPollOnceRunsInFIFOOrder(t *testing.T) {
	l := NewLoop(8)
	var order []int
	for i := 0; i < 4; i++ {
		i := i
		l.Post(func() { order = append(order, i) })
	}

	n := l.PollOnce()
	if n != 4 {
		t.Fatalf("PollOnce processed %d, want 4", n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want [0 1 2 3]", order)
		}
	}
}

func TestPollOnceDrainsFunctionsPostedDuringItself(t *testing.T) {
	l := NewLoop(8)
	var ran []string
	l.Post(func() {
		ran = append(ran, "first")
		l.Post(func() { ran = append(ran, "second") })
	})

	n := l.PollOnce()
	if n != 2 {
		t.Fatalf("PollOnce processed %d, want 2 (the original post and the one it triggers)", n)
	}
	if len(ran) != 2 || ran[0] != "first" || ran[1] != "second" {
		t.Fatalf("ran = %v, want [first second]", ran)
	}
}

func TestPollOnceReturnsZeroWhenQueueIsEmpty(t *testing.T) {
	l := NewLoop(4)
	if n := l.PollOnce(); n != 0 {
		t.Fatalf("PollOnce on an empty queue = %d, want 0", n)
	}
}

func TestRunStopsWhenStopChannelCloses(t *testing.T) {
	l := NewLoop(4)
	stop := make(chan struct{})
	done := make(chan struct{})

	var ran int32
	go func() {
		l.Run(stop)
		close(done)
	}()

	l.Post(func() { ran++ })
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}
