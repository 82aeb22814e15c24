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

// Package fusedispatch translates between the raw FUSE kernel wire
// protocol (package internal/fusewire) and the fsdev Operation Engine
// (package fsdevops), the same role jacobsa/fuse's Connection and ops.go
// play for that project's fuseops-typed requests.
//
// A Dispatcher starts Uninitialized, negotiates the protocol on the
// kernel's INIT request, becomes Mounted against one named Fsdev, and
// from then on decodes each incoming request, submits the matching
// fsdevops call, and encodes the backend's eventual response — or, for
// FORGET/BATCH_FORGET, sends no response at all, per the FUSE ABI.
package fusedispatch
