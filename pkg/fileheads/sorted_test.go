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
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"fileHeads/pkg/heads"
	"fileHeads/pkg/nodehash"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceStream[K any](keys []K, tail error) *heads.Stream[K] {
	i := 0
	return heads.NewStream(func(context.Context) (K, error) {
		var zero K
		if i < len(keys) {
			i++
			return keys[i-1], nil
		}
		if tail != nil {
			return zero, tail
		}
		return zero, io.EOF
	})
}

func TestSorted_OrdersAndDeduplicates(t *testing.T) {
	keys, err := SortedOrdered(context.Background(), sliceStream([]string{"c", "a", "b", "a", "c"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSorted_Empty(t *testing.T) {
	keys, err := SortedOrdered(context.Background(), sliceStream[int](nil, nil))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSorted_PartialOnError(t *testing.T) {
	boom := errors.New("boom")
	keys, err := SortedOrdered(context.Background(), sliceStream([]int{3, 1}, boom))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 3}, keys)
}

func TestSorted_CustomLess(t *testing.T) {
	a := nodehash.MustFromHex("ff00000000000000000000000000000000000000")
	b := nodehash.MustFromHex("0100000000000000000000000000000000000000")
	keys, err := Sorted(context.Background(), sliceStream([]nodehash.NodeHash{a, b}, nil),
		func(x, y nodehash.NodeHash) bool { return bytes.Compare(x[:], y[:]) < 0 })
	require.NoError(t, err)
	assert.Equal(t, []nodehash.NodeHash{b, a}, keys)
}

func TestSorted_FromStore(t *testing.T) {
	s := newStore(t)
	for _, k := range []string{"zeta", "alpha", "mid"} {
		wait(t, s.Add(k))
	}
	keys, err := SortedOrdered(context.Background(), s.Heads())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, keys)
}
