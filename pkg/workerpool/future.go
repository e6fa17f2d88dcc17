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

package workerpool

import "context"

// Future is a handle to the eventual result of a dispatched task
//
// A Future completes exactly once. Waiting on it never cancels the task:
// abandoning a Wait (through ctx) only drops interest in the result.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete must be called exactly once
func (f *Future[T]) complete(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Ready returns an already completed future holding val
func Ready[T any](val T) *Future[T] {
	f := newFuture[T]()
	f.complete(val, nil)
	return f
}

// Failed returns an already completed future holding err
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future completes or ctx ends
// Both the value and the error are returned as the task produced them
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn onto f. fn runs on its own goroutine once f succeeds;
// an error from f is propagated without calling fn.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			next.complete(zero, f.err)
			return
		}
		next.complete(fn(f.val))
	}()
	return next
}
