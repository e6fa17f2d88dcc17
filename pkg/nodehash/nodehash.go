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

// Package nodehash provides the 20-byte content hash used to identify
// revisions. It is the usual key type of a head store.
package nodehash

import (
	"encoding/hex"
	"fmt"
)

// Size of a NodeHash in bytes
const Size = 20

// NodeHash identifies a revision
type NodeHash [Size]byte

// Null is the all-zero hash
var Null NodeHash

// FromHex parses a 40 character hexadecimal string
func FromHex(s string) (NodeHash, error) {
	var h NodeHash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return Null, err
	}
	return h, nil
}

// MustFromHex is like FromHex but panics on malformed input
func MustFromHex(s string) NodeHash {
	h, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

// FromBytes copies b into a NodeHash
func FromBytes(b []byte) (NodeHash, error) {
	var h NodeHash
	if len(b) != Size {
		return Null, fmt.Errorf("nodehash: want %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// String returns the lowercase hex form
func (h NodeHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsNull reports whether h is the all-zero hash
func (h NodeHash) IsNull() bool {
	return h == Null
}

// Compare orders hashes bytewise
func (h NodeHash) Compare(other NodeHash) int {
	for i := range h {
		switch {
		case h[i] < other[i]:
			return -1
		case h[i] > other[i]:
			return 1
		}
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler
func (h NodeHash) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(Size))
	hex.Encode(out, h[:])
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *NodeHash) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(Size) {
		return fmt.Errorf("nodehash: want %d hex characters, got %d", hex.EncodedLen(Size), len(text))
	}
	if _, err := hex.Decode(h[:], text); err != nil {
		return fmt.Errorf("nodehash: %w", err)
	}
	return nil
}
