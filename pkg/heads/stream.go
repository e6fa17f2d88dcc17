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
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// NextFunc produces the next element of a Stream. It returns io.EOF once the
// sequence is exhausted.
type NextFunc[K any] func(ctx context.Context) (K, error)

// Stream is a lazy, single-pass, non-restartable sequence of keys.
//
// The first error other than a context error ends the stream: that error is
// returned once and every later call returns io.EOF. Context errors leave the
// stream where it was so the caller may retry with a fresh context.
type Stream[K any] struct {
	mu   sync.Mutex
	next NextFunc[K]
	done bool
}

// NewStream creates a stream backed by next.
func NewStream[K any](next NextFunc[K]) *Stream[K] {
	return &Stream[K]{next: next}
}

// FailedStream returns a stream that yields err once and then ends.
func FailedStream[K any](err error) *Stream[K] {
	sent := false
	return NewStream(func(context.Context) (K, error) {
		var zero K
		if sent {
			return zero, io.EOF
		}
		sent = true
		return zero, err
	})
}

// Next returns the next key, or io.EOF at the end of the stream.
func (s *Stream[K]) Next(ctx context.Context) (K, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero K
	if s.done {
		return zero, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	key, err := s.next(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		s.done = true
		return zero, err
	}
	return key, nil
}

// All adapts the stream to a range-over-func sequence. A terminal error is
// yielded as the last pair.
func (s *Stream[K]) All(ctx context.Context) iter.Seq2[K, error] {
	return func(yield func(K, error) bool) {
		for {
			key, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero K
				yield(zero, err)
				return
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Collect drains the stream. On error the keys read so far are returned with it.
func (s *Stream[K]) Collect(ctx context.Context) ([]K, error) {
	var keys []K
	for key, err := range s.All(ctx) {
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
