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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all fileHeads metrics
const (
	namespace = "fileheads"
	subsystem = "server"
)

// Metrics holds all Prometheus metrics for fileHeads
//
// All Record* methods are no-ops on a nil *Metrics, so libraries can accept an
// optional instance without guarding every call site.
type Metrics struct {
	// Store operation metrics
	StoreOperationDuration *prometheus.HistogramVec
	StoreOperationTotal    *prometheus.CounterVec
	StoreOperationErrors   *prometheus.CounterVec
	UndecodableEntries     prometheus.Counter

	// Worker pool metrics
	PoolQueueDepth   prometheus.Gauge
	PoolTasksRunning prometheus.Gauge
	PoolTaskDuration *prometheus.HistogramVec
	PoolRejected     *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestTotal    *prometheus.CounterVec
	AuthenticationTotal *prometheus.CounterVec

	// Panic recovery metrics
	PanicsRecovered *prometheus.CounterVec
}

// New creates and registers all metrics
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Store operation metrics
		StoreOperationDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Histogram of head store operation latencies, dispatch included",
				Buckets:   prometheus.DefBuckets, // [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
			},
			[]string{"operation", "status"},
		),

		StoreOperationTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_total",
				Help:      "Total number of head store operations",
			},
			[]string{"operation", "status"},
		),

		StoreOperationErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_errors_total",
				Help:      "Total number of head store operation errors",
			},
			[]string{"operation", "error"}, // "encoding", "decoding", "io", "listing"
		),

		UndecodableEntries: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "undecodable_entries_total",
				Help:      "Total number of prefixed directory entries skipped because they could not be decoded",
			},
		),

		// Worker pool metrics
		PoolQueueDepth: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "queue_depth",
				Help:      "Current number of tasks waiting for a worker",
			},
		),

		PoolTasksRunning: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "tasks_running",
				Help:      "Current number of tasks executing on a worker",
			},
		),

		PoolTaskDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Histogram of task execution time on a worker",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),

		PoolRejected: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "rejected_total",
				Help:      "Total number of tasks rejected by the pool",
			},
			[]string{"reason"}, // "closed"
		),

		// HTTP API metrics
		HTTPRequestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Histogram of HTTP request latencies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),

		HTTPRequestTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "code"},
		),

		AuthenticationTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "authentication_total",
				Help:      "Total number of authentication attempts",
			},
			[]string{"result"}, // "success", "failure"
		),

		// Panic recovery metrics
		PanicsRecovered: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered",
			},
			[]string{"goroutine"},
		),
	}

	return m
}

// RecordStoreOperation records a store operation's duration and status
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	m.StoreOperationTotal.WithLabelValues(operation, status).Inc()
}

// RecordStoreError records a store operation error
func (m *Metrics) RecordStoreError(operation string, errorType string) {
	if m == nil {
		return
	}
	m.StoreOperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordUndecodableEntry records a skipped directory entry
func (m *Metrics) RecordUndecodableEntry() {
	if m == nil {
		return
	}
	m.UndecodableEntries.Inc()
}

// SetPoolQueueDepth updates the pool queue gauge
func (m *Metrics) SetPoolQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.PoolQueueDepth.Set(float64(depth))
}

// RecordPoolTaskStarted marks a task as running
func (m *Metrics) RecordPoolTaskStarted() {
	if m == nil {
		return
	}
	m.PoolTasksRunning.Inc()
}

// RecordPoolTaskFinished records a finished task's execution time
func (m *Metrics) RecordPoolTaskFinished(task string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PoolTasksRunning.Dec()
	m.PoolTaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordPoolRejected records a task the pool refused
func (m *Metrics) RecordPoolRejected(reason string) {
	if m == nil {
		return
	}
	m.PoolRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request's duration and status code
func (m *Metrics) RecordHTTPRequest(method string, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
	m.HTTPRequestTotal.WithLabelValues(method, code).Inc()
}

// RecordAuthentication records an authentication attempt
func (m *Metrics) RecordAuthentication(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.AuthenticationTotal.WithLabelValues(result).Inc()
}

// RecordPanicRecovered records a recovered panic
func (m *Metrics) RecordPanicRecovered(goroutine string) {
	if m == nil {
		return
	}
	m.PanicsRecovered.WithLabelValues(goroutine).Inc()
}
