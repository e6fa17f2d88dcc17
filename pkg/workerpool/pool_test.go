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

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fileHeads/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPool_SubmitAndWait(t *testing.T) {
	p := New(Config{Workers: 2})
	defer p.Close()

	f := Submit(p, "answer", func() (int, error) { return 42, nil })
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	// Waiting again returns the same result
	v, err = f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPool_ErrorPropagates(t *testing.T) {
	p := New(Config{Workers: 1})
	defer p.Close()

	boom := errors.New("boom")
	_, err := Submit(p, "fail", func() (struct{}, error) { return struct{}{}, boom }).Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPool_Defaults(t *testing.T) {
	p := New(Config{})
	defer p.Close()

	assert.Greater(t, p.Workers(), 0)
	assert.Equal(t, p.Workers()*64, cap(p.tasks))
}

func TestPool_SubmitDoesNotBlockWhenQueueFull(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1})

	release := make(chan struct{})
	blocker := Submit(p, "block", func() (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	// Submissions beyond the queue size must return immediately
	var futures []*Future[int]
	returned := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			futures = append(futures, Submit(p, "n", func() (int, error) { return i, nil }))
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	_, err := blocker.Wait(context.Background())
	require.NoError(t, err)

	for i, f := range futures {
		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	p.Close()
}

func TestPool_RunsConcurrently(t *testing.T) {
	const workers = 4
	p := New(Config{Workers: workers})
	defer p.Close()

	var running, peak atomic.Int32
	gate := make(chan struct{})
	var wg sync.WaitGroup
	futures := make([]*Future[struct{}], workers)
	for i := range futures {
		wg.Add(1)
		futures[i] = Submit(p, "concurrent", func() (struct{}, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			wg.Done()
			<-gate
			running.Add(-1)
			return struct{}{}, nil
		})
	}

	// All workers are occupied at the same time
	wg.Wait()
	close(gate)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(workers), peak.Load())
}

func TestPool_WaitHonoursContext(t *testing.T) {
	p := New(Config{Workers: 1})
	defer p.Close()

	release := make(chan struct{})
	var ran atomic.Bool
	f := Submit(p, "slow", func() (struct{}, error) {
		<-release
		ran.Store(true)
		return struct{}{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Abandoning the wait does not cancel the task
	close(release)
	_, err = f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestPool_Closed(t *testing.T) {
	p := New(Config{Workers: 1})

	queued := Submit(p, "queued", func() (string, error) { return "done", nil })
	p.Close()
	p.Close() // idempotent

	// Work submitted before Close still runs
	v, err := queued.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	_, err = Submit(p, "late", func() (string, error) { return "", nil }).Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_PanicRecovered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := New(Config{Workers: 1}, WithMetrics(m), WithLogger(zap.NewNop()))
	defer p.Close()

	_, err := Submit(p, "explode", func() (int, error) { panic("kaboom") }).Wait(context.Background())
	require.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "kaboom")

	// The worker survives the panic
	v, err := Submit(p, "after", func() (int, error) { return 7, nil }).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanicsRecovered.WithLabelValues("workerpool-explode")))
}

func TestPool_RateLimit(t *testing.T) {
	// 20 tasks/s with a burst of 1: five tasks need at least ~200ms
	p := New(Config{Workers: 4, RateLimitQPS: 20, RateLimitBurst: 1})
	defer p.Close()

	start := time.Now()
	var futures []*Future[struct{}]
	for i := 0; i < 5; i++ {
		futures = append(futures, Submit(p, "limited", func() (struct{}, error) { return struct{}{}, nil }))
	}
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestPool_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := New(Config{Workers: 2}, WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := Submit(p, "task-"+strconv.Itoa(i%2), func() (int, error) { return i, nil }).Wait(context.Background())
		require.NoError(t, err)
	}
	p.Close()
	_, _ = Submit(p, "rejected", func() (int, error) { return 0, nil }).Wait(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolRejected.WithLabelValues("closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PoolTasksRunning))
	assert.Equal(t, 2, testutil.CollectAndCount(m.PoolTaskDuration))
}

func TestFuture_ReadyFailedThen(t *testing.T) {
	ctx := context.Background()

	v, err := Ready(3).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	boom := errors.New("boom")
	_, err = Failed[int](boom).Wait(ctx)
	assert.ErrorIs(t, err, boom)

	doubled := Then(Ready(3), func(n int) (string, error) { return strconv.Itoa(n * 2), nil })
	s, err := doubled.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6", s)

	called := false
	_, err = Then(Failed[int](boom), func(n int) (int, error) {
		called = true
		return n, nil
	}).Wait(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestPool_LogsTasks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := New(Config{Workers: 1}, WithLogger(zap.New(core)))

	_, err := Submit(p, "add", func() (int, error) { return 1, nil }).Wait(context.Background())
	require.NoError(t, err)
	_, err = Submit(p, "boom", func() (int, error) { panic("x") }).Wait(context.Background())
	require.ErrorIs(t, err, ErrTaskPanicked)
	p.Close()

	finished := logs.FilterMessage("task finished").FilterField(zap.String("task", "add")).All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(0), finished[0].ContextMap()["worker"])

	assert.Equal(t, 1, logs.FilterMessage("task panicked").FilterField(zap.String("task", "boom")).Len())
	assert.Equal(t, 1, logs.FilterMessage("worker stopped").FilterField(zap.Int("worker", 0)).Len())
}
