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

package heads

import (
	"errors"
	"strings"
)

var (
	// ErrNotADirectory is returned when a store is opened over a path that is
	// missing or is not a directory.
	ErrNotADirectory = errors.New("heads: not a directory")

	// ErrEncoding is returned when a key cannot be turned into its file name.
	ErrEncoding = errors.New("heads: key encoding failed")

	// ErrDecoding is returned when a stored file name cannot be parsed back
	// into a key. It terminates the enumeration that hit it.
	ErrDecoding = errors.New("heads: key decoding failed")

	// ErrIO is returned for any other filesystem failure.
	ErrIO = errors.New("heads: i/o failure")

	// ErrListing is returned when the store directory cannot be listed.
	ErrListing = errors.New("heads: directory listing failed")
)

// Error describes a failed store operation.
//
// Kind is one of the sentinel errors above and Err is the underlying cause,
// typically an *fs.PathError. Both are reachable through errors.Is and
// errors.As.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

// NewError wraps err as a store failure of the given kind.
func NewError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("heads: ")
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(strings.TrimPrefix(e.Kind.Error(), "heads: "))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
