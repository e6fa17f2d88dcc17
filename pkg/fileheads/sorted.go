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
	"cmp"
	"context"

	"fileHeads/pkg/heads"

	"github.com/google/btree"
)

// Sorted drains stream into ascending order by less, dropping duplicates.
// On error the keys collected so far are returned, sorted, with the error.
func Sorted[K any](ctx context.Context, stream *heads.Stream[K], less btree.LessFunc[K]) ([]K, error) {
	tree := btree.NewG(32, less) // degree 32 for good balance

	var streamErr error
	for key, err := range stream.All(ctx) {
		if err != nil {
			streamErr = err
			break
		}
		tree.ReplaceOrInsert(key)
	}

	keys := make([]K, 0, tree.Len())
	tree.Ascend(func(key K) bool {
		keys = append(keys, key)
		return true
	})
	return keys, streamErr
}

// SortedOrdered is Sorted for naturally ordered keys
func SortedOrdered[K cmp.Ordered](ctx context.Context, stream *heads.Stream[K]) ([]K, error) {
	return Sorted(ctx, stream, cmp.Less[K])
}
