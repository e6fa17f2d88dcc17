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

// Package workerpool dispatches blocking calls onto a fixed set of worker
// goroutines and hands back a Future per call.
//
// A Pool is an explicit, caller-owned resource: there is no process-wide
// default. Submitting never blocks the caller, even when the queue is full.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"fileHeads/pkg/log"
	"fileHeads/pkg/metrics"
	"fileHeads/pkg/reliability"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrPoolClosed is returned by futures submitted after Close
	ErrPoolClosed = errors.New("workerpool: pool is closed")

	// ErrTaskPanicked is returned by futures whose task panicked
	ErrTaskPanicked = errors.New("workerpool: task panicked")
)

// Config worker pool configuration
type Config struct {
	Workers        int     // Number of worker goroutines, default runtime.NumCPU()
	QueueSize      int     // Buffered tasks before submissions hand off, default Workers*64
	RateLimitQPS   float64 // Tasks started per second, 0 means unlimited
	RateLimitBurst int     // Token bucket size, default 1
}

// Option configures optional pool collaborators
type Option func(*Pool)

// WithLogger sets the pool logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics enables pool instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// Pool is a fixed-size worker pool
type Pool struct {
	cfg     Config
	tasks   chan task
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	handoff sync.WaitGroup // submissions waiting for room in a full queue
}

type task struct {
	name string
	run  func()
}

// New starts a pool. The caller owns it and must Close it.
func New(cfg Config, opts ...Option) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 64
	}

	p := &Pool{
		cfg:    cfg,
		tasks:  make(chan task, cfg.QueueSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.RateLimitQPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), burst)
	}

	for i := 0; i < cfg.Workers; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Float64("rate_limit_qps", cfg.RateLimitQPS))

	return p
}

// Workers returns the number of worker goroutines
func (p *Pool) Workers() int {
	return p.cfg.Workers
}

// Submit dispatches fn to the pool and returns a handle to its result
// fn should perform one blocking call and no additional synchronization.
func Submit[T any](p *Pool, name string, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()

	err := p.dispatch(task{
		name: name,
		run: func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn("task panicked", log.Task(name))
					reliability.HandlePanic("workerpool-"+name, r)
					p.metrics.RecordPanicRecovered("workerpool-" + name)
					var zero T
					f.complete(zero, fmt.Errorf("%w: %s: %v", ErrTaskPanicked, name, r))
				}
			}()
			f.complete(fn())
		},
	})
	if err != nil {
		var zero T
		f.complete(zero, err)
	}

	return f
}

func (p *Pool) dispatch(t task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.metrics.RecordPoolRejected("closed")
		return ErrPoolClosed
	}

	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	default:
		// Queue is full: hand off to a goroutine so the caller never blocks
		p.handoff.Add(1)
		p.mu.RUnlock()
		go func() {
			defer p.handoff.Done()
			p.tasks <- t
		}()
	}

	p.metrics.SetPoolQueueDepth(len(p.tasks))
	return nil
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()

	for t := range p.tasks {
		p.metrics.SetPoolQueueDepth(len(p.tasks))

		if p.limiter != nil {
			// Background never ends and burst >= 1, so Wait cannot fail
			_ = p.limiter.Wait(context.Background())
		}

		start := time.Now()
		p.metrics.RecordPoolTaskStarted()
		t.run()
		elapsed := time.Since(start)
		p.metrics.RecordPoolTaskFinished(t.name, elapsed)
		p.logger.Debug("task finished", log.Worker(id), log.Task(t.name), log.Duration("duration", elapsed))
	}

	p.logger.Debug("worker stopped", log.Worker(id))
}

// Close stops accepting work, runs everything already submitted and waits
// for the workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.handoff.Wait()
	close(p.tasks)
	p.workers.Wait()

	p.logger.Info("worker pool stopped")
}
