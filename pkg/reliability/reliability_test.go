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

package reliability

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValidator(t *testing.T) {
	ResetValidationErrorCount()
	kv := NewKeyValidator(8)

	assert.NoError(t, kv.ValidateKey("main"))
	assert.NoError(t, kv.ValidateKey("feature/"))

	tests := []string{"", "\xff", strings.Repeat("a", 9)}
	for _, key := range tests {
		assert.ErrorIs(t, kv.ValidateKey(key), ErrInvalidKey, "%q", key)
	}
	assert.Equal(t, int64(len(tests)), GetValidationErrorCount())

	assert.NoError(t, NewKeyValidator(0).ValidateKey(strings.Repeat("a", MaxFileNameBytes)))
}

func TestPanicMiddleware(t *testing.T) {
	ResetPanicCount()

	var seen atomic.Value
	PanicHandler = func(name string, v interface{}, stack []byte) {
		seen.Store(name)
	}
	t.Cleanup(func() { PanicHandler = nil })

	err := PanicMiddleware("test", func() error { panic("boom") })
	require.ErrorIs(t, err, ErrPanicRecovered)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(1), GetPanicCount())
	assert.Equal(t, "test", seen.Load())

	plain := errors.New("plain")
	assert.ErrorIs(t, PanicMiddleware("test", func() error { return plain }), plain)
}

func TestSafeGo(t *testing.T) {
	ResetPanicCount()

	done := make(chan struct{})
	SafeGo("worker", func() {
		defer close(done)
		panic("oops")
	})
	<-done

	assert.Eventually(t, func() bool { return GetPanicCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGracefulShutdown_PhasesInOrder(t *testing.T) {
	gs := NewGracefulShutdown(time.Second)

	var order []string
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	gs.RegisterHook(PhaseCloseResources, record("close"))
	gs.RegisterHook(PhaseStopAccepting, record("stop"))
	gs.RegisterHook(PhaseDrainWork, record("drain"))

	assert.False(t, gs.IsShuttingDown())
	require.NoError(t, gs.Shutdown())
	assert.Equal(t, []string{"stop", "drain", "close"}, order)
	assert.True(t, gs.IsShuttingDown())

	select {
	case <-gs.Done():
	default:
		t.Fatal("Done not closed")
	}

	// second call is a no-op
	require.NoError(t, gs.Shutdown())
	assert.Len(t, order, 3)
}

func TestGracefulShutdown_ErrorsDoNotStopLaterPhases(t *testing.T) {
	gs := NewGracefulShutdown(time.Second)

	boom := errors.New("boom")
	var closed atomic.Bool
	gs.RegisterHook(PhaseStopAccepting, func(context.Context) error { return boom })
	gs.RegisterHook(PhaseDrainWork, func(context.Context) error { panic("hook panic") })
	gs.RegisterHook(PhaseCloseResources, func(context.Context) error {
		closed.Store(true)
		return nil
	})

	err := gs.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.True(t, closed.Load())
}

func TestGracefulShutdown_Timeout(t *testing.T) {
	gs := NewGracefulShutdown(20 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	gs.RegisterHook(PhaseDrainWork, func(context.Context) error {
		<-release
		return nil
	})

	err := gs.Shutdown()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGracefulShutdown_WaitOnContext(t *testing.T) {
	gs := NewGracefulShutdown(time.Second)

	var ran atomic.Bool
	gs.RegisterHook(PhaseStopAccepting, func(context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, gs.Wait(ctx))
	assert.True(t, ran.Load())
}
