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

// Package fileheads implements a head store backed by a plain directory.
//
// Each head is an empty marker file named "head:" followed by the encoded
// key. The directory is the only index: nothing is cached, so every answer
// is re-derived from disk and a second store over the same directory sees
// exactly what the first one wrote.
//
// Store does no in-process locking. Concurrent operations on the same key
// race at the filesystem level, and an enumeration running alongside writers
// is not a snapshot. Wrap a Store in Serialized when that is not acceptable.
package fileheads

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"fileHeads/internal/codec"
	"fileHeads/pkg/heads"
	"fileHeads/pkg/log"
	"fileHeads/pkg/metrics"
	"fileHeads/pkg/workerpool"

	"go.uber.org/zap"
)

// Operation names used for pool tasks, metrics and errors
const (
	opOpen   = "open"
	opCreate = "create"
	opPath   = "path"
	opAdd    = "add"
	opRemove = "remove"
	opIsHead = "is_head"
	opHeads  = "heads"
)

// Store is a directory-backed head store
type Store[K any] struct {
	base    string
	pool    *workerpool.Pool
	codec   codec.Codec[K]
	logger  *zap.Logger
	metrics *metrics.Metrics

	skipUndecodable bool
}

var _ heads.Heads[string] = (*Store[string])(nil)

type options struct {
	logger          *zap.Logger
	metrics         *metrics.Metrics
	codec           any
	skipUndecodable bool
}

// Option configures a Store
type Option func(*options)

// WithLogger sets the store logger, default zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables store instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCodec replaces the default URL codec. The codec key type must match
// the store key type.
func WithCodec[K any](c codec.Codec[K]) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithSkipUndecodable makes Heads skip prefixed entries it cannot decode
// (logged and counted) instead of ending the enumeration with an error.
func WithSkipUndecodable(skip bool) Option {
	return func(o *options) {
		o.skipUndecodable = skip
	}
}

// Open binds a store to an existing directory
func Open[K any](path string, pool *workerpool.Pool, opts ...Option) (*Store[K], error) {
	if pool == nil {
		return nil, fmt.Errorf("fileheads: %s %s: nil worker pool", opOpen, path)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	var c codec.Codec[K] = codec.NewURLCodec[K]()
	if o.codec != nil {
		typed, ok := o.codec.(codec.Codec[K])
		if !ok {
			return nil, fmt.Errorf("fileheads: %s %s: codec %T does not encode %T", opOpen, path, o.codec, *new(K))
		}
		c = typed
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, heads.NewError(heads.ErrNotADirectory, opOpen, path, err)
	}
	if !info.IsDir() {
		return nil, heads.NewError(heads.ErrNotADirectory, opOpen, path, nil)
	}

	s := &Store[K]{
		base:            path,
		pool:            pool,
		codec:           c,
		logger:          o.logger.With(log.Component("fileheads"), log.Path(path)),
		metrics:         o.metrics,
		skipUndecodable: o.skipUndecodable,
	}
	s.logger.Debug("head store opened", zap.Bool("skip_undecodable", o.skipUndecodable))
	return s, nil
}

// Create makes path (and any missing parents) if needed, then opens it
func Create[K any](path string, pool *workerpool.Pool, opts ...Option) (*Store[K], error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, heads.NewError(heads.ErrIO, opCreate, path, err)
	}
	return Open[K](path, pool, opts...)
}

// Dir returns the base directory
func (s *Store[K]) Dir() string {
	return s.base
}

// Path returns the marker file path for key
func (s *Store[K]) Path(key K) (string, error) {
	return s.path(opPath, key)
}

func (s *Store[K]) path(op string, key K) (string, error) {
	name, err := codec.FileName(s.codec, key)
	if err != nil {
		return "", heads.NewError(heads.ErrEncoding, op, "", err)
	}
	return filepath.Join(s.base, name), nil
}

// Add records key as a head by creating its (empty) marker file
func (s *Store[K]) Add(key K) *workerpool.Future[struct{}] {
	path, err := s.pathFor(opAdd, key)
	if err != nil {
		return workerpool.Failed[struct{}](err)
	}
	return submit(s, opAdd, func() (struct{}, error) {
		return struct{}{}, s.createMarker(path)
	})
}

// Remove deletes the marker file. A missing marker is not an error.
func (s *Store[K]) Remove(key K) *workerpool.Future[struct{}] {
	path, err := s.pathFor(opRemove, key)
	if err != nil {
		return workerpool.Failed[struct{}](err)
	}
	return submit(s, opRemove, func() (struct{}, error) {
		return struct{}{}, s.removeMarker(path)
	})
}

// IsHead reports whether the marker file exists
func (s *Store[K]) IsHead(key K) *workerpool.Future[bool] {
	path, err := s.pathFor(opIsHead, key)
	if err != nil {
		return workerpool.Failed[bool](err)
	}
	return submit(s, opIsHead, func() (bool, error) {
		return s.markerExists(path), nil
	})
}

// Heads lists the directory on the pool and decodes entries as the stream
// is consumed. Order follows the directory listing.
func (s *Store[K]) Heads() *heads.Stream[K] {
	listing := submit(s, opHeads, func() ([]string, error) {
		return s.listNames()
	})
	return s.stream(listing)
}

func (s *Store[K]) pathFor(op string, key K) (string, error) {
	path, err := s.path(op, key)
	if err != nil {
		s.metrics.RecordStoreOperation(op, "error", 0)
		s.metrics.RecordStoreError(op, errorType(err))
		s.logger.Debug("key encoding failed", log.Operation(op), log.Err(err))
		return "", err
	}
	return path, nil
}

// createMarker creates or truncates an empty marker file
func (s *Store[K]) createMarker(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return heads.NewError(heads.ErrIO, opAdd, path, err)
	}
	if err := f.Close(); err != nil {
		return heads.NewError(heads.ErrIO, opAdd, path, err)
	}
	return nil
}

func (s *Store[K]) removeMarker(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return heads.NewError(heads.ErrIO, opRemove, path, err)
}

// markerExists treats every stat failure, permission errors included, as absence
func (s *Store[K]) markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// listNames returns the raw directory entry names. On a partial read both
// the names read so far and the error are returned.
func (s *Store[K]) listNames() ([]string, error) {
	dir, err := os.Open(s.base)
	if err != nil {
		return nil, heads.NewError(heads.ErrListing, opHeads, s.base, err)
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return names, heads.NewError(heads.ErrListing, opHeads, s.base, err)
	}
	return names, nil
}

// submit dispatches fn on the store's pool and records its outcome
func submit[K, T any](s *Store[K], op string, fn func() (T, error)) *workerpool.Future[T] {
	start := time.Now()
	return workerpool.Submit(s.pool, op, func() (T, error) {
		v, err := fn()
		s.observe(op, start, err)
		return v, err
	})
}

func (s *Store[K]) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordStoreOperation(op, "error", elapsed)
		s.metrics.RecordStoreError(op, errorType(err))
		s.logger.Error("head store operation failed",
			log.Operation(op), log.Duration("duration", elapsed), log.Err(err))
		return
	}
	s.metrics.RecordStoreOperation(op, "ok", elapsed)
	s.logger.Debug("head store operation done", log.Operation(op), log.Duration("duration", elapsed))
}

// errorType maps an error to its metrics label
func errorType(err error) string {
	switch {
	case errors.Is(err, heads.ErrEncoding):
		return "encoding"
	case errors.Is(err, heads.ErrDecoding):
		return "decoding"
	case errors.Is(err, heads.ErrListing):
		return "listing"
	case errors.Is(err, heads.ErrIO):
		return "io"
	case errors.Is(err, workerpool.ErrPoolClosed):
		return "pool_closed"
	case errors.Is(err, workerpool.ErrTaskPanicked):
		return "panic"
	default:
		return "unknown"
	}
}
