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

// Package syncmap wraps sync.Map with type parameters.
package syncmap

import (
	"iter"
	"sync"
)

// Map is a typed sync.Map. Suited to keys written once and read many times,
// such as per-user credential caches.
type Map[K comparable, V any] struct {
	m sync.Map
}

// NewMap creates an empty map
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

// Load returns the value for key and whether it was present
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}
	return v.(V), true
}

// Store sets the value for key
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadOrStore returns the existing value for key if present; otherwise it
// stores and returns value. loaded reports which happened.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	return v.(V), loaded
}

// Delete removes key
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// All iterates over the entries in no particular order.
// Entries added or removed during iteration may or may not be seen.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.m.Range(func(k, v any) bool {
			return yield(k.(K), v.(V))
		})
	}
}

// Len counts the entries. O(n).
func (m *Map[K, V]) Len() int {
	n := 0
	for range m.All() {
		n++
	}
	return n
}

// Keys returns the keys in no particular order
func (m *Map[K, V]) Keys() []K {
	var keys []K
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}
