// Copyright 2025 The axfor Authors
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

// Package heads defines the capability contract for head stores.
//
// A head is a tracked reference (a branch tip or a bookmark) into a versioned
// history. Implementations persist a set of keys of type K and expose it
// through asynchronous operations: every method returns a handle immediately
// and the caller observes completion by waiting on or chaining that handle.
package heads

import "fileHeads/pkg/workerpool"

// Heads is the interface that all head stores must implement.
//
// K must be serializable to and from a canonical string and safe to share
// across goroutines; value types satisfy the latter trivially.
type Heads[K any] interface {
	// Add records key as a head. Adding an existing head succeeds.
	Add(key K) *workerpool.Future[struct{}]

	// Remove forgets key. Removing a key that is not a head succeeds.
	Remove(key K) *workerpool.Future[struct{}]

	// IsHead reports whether key is currently a head.
	IsHead(key K) *workerpool.Future[bool]

	// Heads enumerates the current heads as a lazy, single-pass sequence.
	// Order is unspecified.
	Heads() *Stream[K]
}
