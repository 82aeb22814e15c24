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

// Package fsdevops is the Operation Engine: one builder function per
// entry in the fsdev operation catalog (mount, lookup, read, readdir,
// and so on). Every builder acquires an OperationDescriptor from the
// pool, populates its typed input, submits it to the backend through
// package fsdev, and delivers the typed result through a caller-supplied
// callback once the backend completes.
//
// Synchronous failures (NoBuffers, OutOfMemory) are returned directly
// from the builder; every other outcome, including backend-reported
// errors, arrives through the callback.
package fsdevops
