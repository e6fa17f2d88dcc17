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
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fileHeads/pkg/log"
)

// ShutdownHook 关闭钩子函数类型
type ShutdownHook func(ctx context.Context) error

// ShutdownPhase 关闭阶段
type ShutdownPhase int

const (
	// PhaseStopAccepting 停止接受新请求（关闭 HTTP 监听）
	PhaseStopAccepting ShutdownPhase = iota
	// PhaseDrainWork 等待已派发到 worker pool 的文件操作完成
	PhaseDrainWork
	// PhaseCloseResources 关闭资源（metrics server、日志）
	PhaseCloseResources
)

var shutdownPhases = []ShutdownPhase{
	PhaseStopAccepting,
	PhaseDrainWork,
	PhaseCloseResources,
}

// GracefulShutdown 优雅关闭管理器
type GracefulShutdown struct {
	mu      sync.RWMutex
	hooks   map[ShutdownPhase][]ShutdownHook
	timeout time.Duration
	done    chan struct{}
	signals chan os.Signal
}

// NewGracefulShutdown 创建优雅关闭管理器
func NewGracefulShutdown(timeout time.Duration) *GracefulShutdown {
	if timeout == 0 {
		timeout = 30 * time.Second // 默认 30 秒超时
	}

	return &GracefulShutdown{
		hooks:   make(map[ShutdownPhase][]ShutdownHook),
		timeout: timeout,
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// RegisterHook 注册关闭钩子
func (gs *GracefulShutdown) RegisterHook(phase ShutdownPhase, hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.hooks[phase] = append(gs.hooks[phase], hook)
}

// Wait 等待关闭信号（SIGTERM / SIGINT）或 ctx 结束
func (gs *GracefulShutdown) Wait(ctx context.Context) error {
	signal.Notify(gs.signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(gs.signals)

	select {
	case sig := <-gs.signals:
		log.Info("Received shutdown signal",
			log.String("signal", sig.String()),
			log.Component("shutdown"))
	case <-ctx.Done():
		log.Info("Shutdown requested",
			log.Err(ctx.Err()),
			log.Component("shutdown"))
	}
	return gs.Shutdown()
}

// Shutdown 执行优雅关闭，按阶段顺序执行钩子
// 某一阶段失败不会中断后续阶段，所有错误合并返回
func (gs *GracefulShutdown) Shutdown() error {
	gs.mu.Lock()
	select {
	case <-gs.done:
		// 已经在关闭中
		gs.mu.Unlock()
		return nil
	default:
		close(gs.done)
	}
	gs.mu.Unlock()

	// 创建带超时的 context
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	var errs []error
	for _, phase := range shutdownPhases {
		phaseName := gs.phaseName(phase)
		log.Info("Shutdown phase started",
			log.Phase(phaseName),
			log.Component("shutdown"))

		gs.mu.RLock()
		hooks := gs.hooks[phase]
		gs.mu.RUnlock()

		// 并发执行同一阶段的所有钩子
		if err := gs.executeHooks(ctx, hooks, phaseName); err != nil {
			log.Error("Shutdown phase failed",
				log.Phase(phaseName),
				log.Err(err),
				log.Component("shutdown"))
			// 继续执行后续阶段，确保资源被清理
			errs = append(errs, err)
		}
	}

	log.Info("Graceful shutdown completed",
		log.Component("shutdown"))
	return errors.Join(errs...)
}

// executeHooks 执行一组钩子
func (gs *GracefulShutdown) executeHooks(ctx context.Context, hooks []ShutdownHook, phaseName string) error {
	if len(hooks) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(hooks))

	for i, hook := range hooks {
		wg.Add(1)
		go func(idx int, h ShutdownHook) {
			defer wg.Done()
			defer RecoverPanic(fmt.Sprintf("shutdown-hook-%s-%d", phaseName, idx))

			if err := h(ctx); err != nil {
				errChan <- fmt.Errorf("hook %d failed: %w", idx, err)
			}
		}(i, hook)
	}

	// 等待所有钩子完成
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errChan)
		// 收集所有错误
		var errs []error
		for err := range errChan {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("phase %s: %w", phaseName, errors.Join(errs...))
		}
		return nil

	case <-ctx.Done():
		return fmt.Errorf("phase %s timeout: %w", phaseName, ctx.Err())
	}
}

// phaseName 返回阶段名称
func (gs *GracefulShutdown) phaseName(phase ShutdownPhase) string {
	switch phase {
	case PhaseStopAccepting:
		return "Stop Accepting"
	case PhaseDrainWork:
		return "Drain Work"
	case PhaseCloseResources:
		return "Close Resources"
	default:
		return fmt.Sprintf("Unknown Phase %d", phase)
	}
}

// Done 返回关闭完成 channel
func (gs *GracefulShutdown) Done() <-chan struct{} {
	return gs.done
}

// IsShuttingDown 检查是否正在关闭
func (gs *GracefulShutdown) IsShuttingDown() bool {
	select {
	case <-gs.done:
		return true
	default:
		return false
	}
}
