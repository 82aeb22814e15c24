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

// Package fsdevthread defines the minimal message-passing primitive the
// fsdev core requires from a host's thread/reactor runtime, and ships one
// reference implementation so the core is testable without a real reactor.
//
// The host runtime itself (timers, polling, I/O channel plumbing) is an
// external collaborator referenced only by this interface; production
// embedders are expected to adapt their own reactor to it.
package fsdevthread

import "sync/atomic"

// Thread is a single-threaded cooperative execution context: at most one
// function runs on it at a time, and functions posted to it run in the
// order they were posted. No function posted to a Thread may block.
type Thread interface {
	// ID returns a value stable for the lifetime of the thread, suitable as
	// an iopool.ThreadID.
	ID() uint64

	// Post enqueues fn to run on this thread's next poll. Post may be
	// called from any goroutine, including this thread's own.
	Post(fn func())

	// IsCurrent reports whether the calling goroutine is the one driving
	// this Thread's Run loop.
	IsCurrent() bool
}

var nextID uint64

// Loop is a reference Thread backed by one goroutine and a buffered
// channel of posted functions, draining them in FIFO order.
type Loop struct {
	id   uint64
	msgs chan func()

	// running is set for the duration of each dequeued function's
	// execution, so that code invoked synchronously from within a posted
	// fn can call IsCurrent to discover it is already on the right thread
	// (Go exposes no goroutine identity to compare against directly).
	running int32
}

// NewLoop creates a Loop with the given outstanding-message queue depth.
// The loop does nothing until Run or PollOnce is called.
func NewLoop(queueDepth int) *Loop {
	return &Loop{
		id:   atomic.AddUint64(&nextID, 1),
		msgs: make(chan func(), queueDepth),
	}
}

func (l *Loop) ID() uint64 { return l.id }

func (l *Loop) Post(fn func()) {
	l.msgs <- fn
}

// IsCurrent reports whether the calling code is running synchronously
// inside a function this Loop dequeued and is currently executing.
func (l *Loop) IsCurrent() bool {
	return atomic.LoadInt32(&l.running) != 0
}

func (l *Loop) runOne(fn func()) {
	atomic.StoreInt32(&l.running, 1)
	defer atomic.StoreInt32(&l.running, 0)
	fn()
}

// Run drains posted functions until stop is closed. It must be called
// from the goroutine that is to be considered "this thread" for the
// lifetime of the loop.
func (l *Loop) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case fn := <-l.msgs:
			l.runOne(fn)
		}
	}
}

// PollOnce drains any functions already queued without blocking, returning
// the number processed. Useful in tests that don't want to run a full Loop
// goroutine in the background.
func (l *Loop) PollOnce() int {
	n := 0
	for {
		select {
		case fn := <-l.msgs:
			l.runOne(fn)
			n++
		default:
			return n
		}
	}
}
