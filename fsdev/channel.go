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

package fsdev

import (
	"sync"

	"github.com/spdk-go/fsdev/fsdevthread"
)

// SharedResource aggregates the backend channels a single thread has
// already obtained, so two Fsdevs whose backend hands back the same
// BackendChannel (by identity) share one entry instead of each holding
// their own (spec §3, §4.2: "coalesces with any existing shared-resource
// entry on the same management channel whose backend channel matches").
type SharedResource struct {
	channel BackendChannel

	mu       sync.Mutex
	refcount int
}

// Channel is a per-thread binding between an Fsdev and the backend's I/O
// channel (spec §3). It is created by Registry.GetIOChannel and must only
// be used from the thread that created it.
type Channel struct {
	Fsdev  *Fsdev
	shared *SharedResource

	// Thread is the thread this Channel was created on; every
	// fsdevops builder reads it to call Submit.
	Thread fsdevthread.Thread

	threadChannels *registryThreadChannels

	mu       sync.Mutex
	inFlight map[*OperationDescriptor]struct{}
}

// BackendChannel returns the underlying backend I/O handle this Channel
// forwards submit_request calls to.
func (c *Channel) BackendChannel() BackendChannel {
	return c.shared.channel
}

func (c *Channel) addInFlight(op *OperationDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[op] = struct{}{}
}

func (c *Channel) removeInFlight(op *OperationDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, op)
}

// InFlightCount reports the number of operations submitted on this channel
// that have not yet completed.
func (c *Channel) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Put releases the Channel, dropping the SharedResource's refcount and
// closing the backend channel once the last Channel referencing it is
// gone (spec §3: SharedResource "freed when refcount hits zero").
func (c *Channel) Put() {
	c.shared.mu.Lock()
	c.shared.refcount--
	last := c.shared.refcount == 0
	c.shared.mu.Unlock()

	if last {
		c.threadChannels.forget(c.shared)
		c.shared.channel.Close()
	}
}
