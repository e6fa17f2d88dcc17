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

package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"` // Check latency in milliseconds
}

// HealthReport represents the overall health status
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker is an interface for health checks
type Checker interface {
	// Check performs the health check
	// Returns status, message, and error (if any)
	Check(ctx context.Context) (Status, string, error)

	// Name returns the check name
	Name() string
}

// HealthServer serves /health, /ready and /live
type HealthServer struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger

	// 缓存最近一次检查结果，避免探针频繁访问磁盘
	cachedReport    *HealthReport
	cacheValidUntil time.Time
	cacheDuration   time.Duration

	draining atomic.Bool
}

// NewHealthServer creates a new health check server
func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		logger:        logger,
		cacheDuration: 5 * time.Second,
	}
}

// RegisterChecker adds a health checker
func (hs *HealthServer) RegisterChecker(checker Checker) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checkers = append(hs.checkers, checker)
	hs.cachedReport = nil
	hs.logger.Info("registered health checker", zap.String("name", checker.Name()))
}

// SetDraining marks the process as shutting down: readiness fails from now on
func (hs *HealthServer) SetDraining() {
	hs.draining.Store(true)
}

// Check performs all health checks
func (hs *HealthServer) Check(ctx context.Context) *HealthReport {
	hs.mu.RLock()
	if hs.cachedReport != nil && time.Now().Before(hs.cacheValidUntil) {
		cached := hs.cachedReport
		hs.mu.RUnlock()
		return cached
	}
	hs.mu.RUnlock()

	hs.mu.Lock()
	defer hs.mu.Unlock()

	// 另一个请求可能已经刷新了缓存
	if hs.cachedReport != nil && time.Now().Before(hs.cacheValidUntil) {
		return hs.cachedReport
	}

	report := &HealthReport{
		Status:    StatusHealthy,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Checks:    make(map[string]CheckResult, len(hs.checkers)),
	}

	for _, checker := range hs.checkers {
		startTime := time.Now()
		status, message, err := checker.Check(ctx)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			status = StatusUnhealthy
			message = err.Error()
			hs.logger.Warn("health check failed", zap.String("name", checker.Name()), zap.Error(err))
		}

		report.Checks[checker.Name()] = CheckResult{
			Status:  status,
			Message: message,
			Latency: latency,
		}

		switch {
		case status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case status == StatusDegraded && report.Status != StatusUnhealthy:
			report.Status = StatusDegraded
		}
	}

	hs.cachedReport = report
	hs.cacheValidUntil = time.Now().Add(hs.cacheDuration)

	return report
}

// ServeHTTP implements http.Handler for /health endpoint
func (hs *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	report := hs.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK) // degraded is still 200
	}

	if err := json.NewEncoder(w).Encode(report); err != nil {
		hs.logger.Debug("failed to write health report", zap.Error(err))
	}
}

// ReadinessHandler returns 200 if ready, 503 if not
func (hs *HealthServer) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hs.draining.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Shutting Down\n"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if hs.Check(ctx).Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Not Ready\n"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready\n"))
	}
}

// LivenessHandler only reports that the process is responsive
func (hs *HealthServer) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Alive\n"))
	}
}

// Routes returns the probe endpoints keyed by path, ready to mount on the
// metrics server
func (hs *HealthServer) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/health": hs,
		"/ready":  hs.ReadinessHandler(),
		"/live":   hs.LivenessHandler(),
	}
}

// Common health checkers

// StoreChecker runs a probe against the head store
type StoreChecker struct {
	name      string
	checkFunc func(context.Context) error
}

// NewStoreChecker creates a store health checker
func NewStoreChecker(name string, checkFunc func(context.Context) error) *StoreChecker {
	return &StoreChecker{
		name:      name,
		checkFunc: checkFunc,
	}
}

func (sc *StoreChecker) Name() string {
	return sc.name
}

func (sc *StoreChecker) Check(ctx context.Context) (Status, string, error) {
	if err := sc.checkFunc(ctx); err != nil {
		return StatusUnhealthy, fmt.Sprintf("store check failed: %v", err), err
	}
	return StatusHealthy, "store is operational", nil
}

// DirectoryChecker verifies the store directory exists and accepts new files.
// The probe file carries no marker prefix, so enumerations never see it.
type DirectoryChecker struct {
	name string
	path string
}

// NewDirectoryChecker creates a directory checker
func NewDirectoryChecker(name, path string) *DirectoryChecker {
	return &DirectoryChecker{name: name, path: path}
}

func (dc *DirectoryChecker) Name() string {
	return dc.name
}

func (dc *DirectoryChecker) Check(ctx context.Context) (Status, string, error) {
	info, err := os.Stat(dc.path)
	if err != nil {
		return StatusUnhealthy, "", fmt.Errorf("stat %s: %w", dc.path, err)
	}
	if !info.IsDir() {
		return StatusUnhealthy, "", fmt.Errorf("%s is not a directory", dc.path)
	}

	f, err := os.CreateTemp(dc.path, ".health-*")
	if err != nil {
		return StatusDegraded, fmt.Sprintf("directory is read-only: %v", err), nil
	}
	name := f.Name()
	err = errors.Join(f.Close(), os.Remove(name))
	if err != nil {
		return StatusDegraded, fmt.Sprintf("probe cleanup failed: %v", err), nil
	}

	return StatusHealthy, "directory is writable", nil
}

// DiskSpaceChecker checks available disk space
type DiskSpaceChecker struct {
	name          string
	path          string
	minFreeGB     int64
	warnThreshold int64 // Warning threshold in percentage (e.g., 80 for 80%)
}

// NewDiskSpaceChecker creates a disk space checker
func NewDiskSpaceChecker(name string, path string, minFreeGB int64, warnThreshold int64) *DiskSpaceChecker {
	return &DiskSpaceChecker{
		name:          name,
		path:          path,
		minFreeGB:     minFreeGB,
		warnThreshold: warnThreshold,
	}
}

func (dsc *DiskSpaceChecker) Name() string {
	return dsc.name
}

func (dsc *DiskSpaceChecker) Check(ctx context.Context) (Status, string, error) {
	totalGB, freeGB, usedPercent, err := getDiskUsage(dsc.path)
	if err != nil {
		return StatusUnhealthy, fmt.Sprintf("failed to get disk usage: %v", err), err
	}

	message := fmt.Sprintf("%.1fGB free of %.1fGB (%.1f%% used)", freeGB, totalGB, usedPercent)

	if freeGB < float64(dsc.minFreeGB) {
		return StatusUnhealthy, fmt.Sprintf("disk space critical: %s", message), nil
	}
	if usedPercent > float64(dsc.warnThreshold) {
		return StatusDegraded, fmt.Sprintf("disk space low: %s", message), nil
	}

	return StatusHealthy, message, nil
}
