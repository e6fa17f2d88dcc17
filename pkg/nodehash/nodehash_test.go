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

package nodehash

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "0123456789abcdef0123456789abcdef01234567"

func TestFromHex(t *testing.T) {
	h, err := FromHex(sample)
	require.NoError(t, err)
	assert.Equal(t, sample, h.String())
	assert.False(t, h.IsNull())
	assert.Equal(t, byte(0x01), h[0])

	upper, err := FromHex(strings.ToUpper(sample))
	require.NoError(t, err)
	assert.Equal(t, h, upper)
}

func TestFromHex_Invalid(t *testing.T) {
	tests := []string{"", "abc", sample + "00", strings.Repeat("zz", Size)}
	for _, s := range tests {
		_, err := FromHex(s)
		assert.Error(t, err, s)
	}
	assert.Panics(t, func() { MustFromHex("nope") })
}

func TestFromBytes(t *testing.T) {
	b := make([]byte, Size)
	b[Size-1] = 0xff
	h, err := FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), h[Size-1])

	_, err = FromBytes(b[:3])
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	a := MustFromHex(strings.Repeat("00", Size-1) + "01")
	b := MustFromHex(strings.Repeat("00", Size-1) + "02")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, Null.IsNull())
}

func TestJSON(t *testing.T) {
	h := MustFromHex(sample)
	data, err := json.Marshal(map[string]NodeHash{"head": h})
	require.NoError(t, err)
	assert.JSONEq(t, `{"head":"`+sample+`"}`, string(data))

	var out map[string]NodeHash
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, h, out["head"])
}
