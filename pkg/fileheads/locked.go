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

package fileheads

import (
	"sync"

	"fileHeads/pkg/heads"
	"fileHeads/pkg/workerpool"
)

// Serialized is a Store whose enumerations are isolated from its own writers.
//
// Heads takes its directory listing while no Add or Remove issued through
// this Serialized is in flight, and mutations wait while a listing is being
// read. Each mutation is a single filesystem call, so operations on the same
// key are already atomic with respect to each other and need no extra lock.
// Writers in other processes, or through other Store values over the same
// directory, are not covered.
type Serialized[K any] struct {
	store *Store[K]

	mu sync.RWMutex // mutations share it, listings own it
}

var _ heads.Heads[string] = (*Serialized[string])(nil)

// NewSerialized wraps store
func NewSerialized[K any](store *Store[K]) *Serialized[K] {
	return &Serialized[K]{store: store}
}

// Store returns the wrapped store
func (s *Serialized[K]) Store() *Store[K] {
	return s.store
}

// Add records key as a head
func (s *Serialized[K]) Add(key K) *workerpool.Future[struct{}] {
	path, err := s.store.pathFor(opAdd, key)
	if err != nil {
		return workerpool.Failed[struct{}](err)
	}
	return submit(s.store, opAdd, func() (struct{}, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return struct{}{}, s.store.createMarker(path)
	})
}

// Remove forgets key
func (s *Serialized[K]) Remove(key K) *workerpool.Future[struct{}] {
	path, err := s.store.pathFor(opRemove, key)
	if err != nil {
		return workerpool.Failed[struct{}](err)
	}
	return submit(s.store, opRemove, func() (struct{}, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return struct{}{}, s.store.removeMarker(path)
	})
}

// IsHead reports whether key is a head. It reads a single marker and takes
// no lock.
func (s *Serialized[K]) IsHead(key K) *workerpool.Future[bool] {
	return s.store.IsHead(key)
}

// Heads enumerates the heads from a listing taken with all writers excluded.
// The lock is held inside the pool task and never while waiting on the pool.
func (s *Serialized[K]) Heads() *heads.Stream[K] {
	listing := submit(s.store, opHeads, func() ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.store.listNames()
	})
	return s.store.stream(listing)
}
