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

// Package fsdev implements the filesystem-device core: a named-device
// registry, per-thread I/O channels shared across Fsdevs that point at
// the same backend channel, and the bounded OperationDescriptor pool the
// Operation Engine (package fsdevops) draws from.
//
// A backend registers an Fsdev through a Registry, exposing its
// operations through a FnTable. Clients never talk to a backend directly:
// they Open a Descriptor, use it to get a per-thread Channel, and drive
// operations through fsdevops, which calls back into this package's
// Submit/Complete pair to talk to the backend.
package fsdev
