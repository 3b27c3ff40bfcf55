// Package observability provides Prometheus metrics for the application.
// The desktop app has no listener, so metrics live on a private registry
// and are written to a textfile on shutdown.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grabtube"

// Extraction results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Task metrics
	TasksEnqueued   prometheus.Counter
	TasksCompleted  prometheus.Counter
	TasksFailed     prometheus.Counter
	TasksCancelled  prometheus.Counter
	TasksActive     prometheus.Gauge
	QueueDepth      prometheus.Gauge
	TaskDuration    prometheus.Histogram
	DownloadedBytes prometheus.Counter
	EventsDropped   prometheus.Counter

	// Extractor metrics
	ExtractionsTotal *prometheus.CounterVec

	// Proxy metrics
	ProxyPicks    *prometheus.CounterVec
	ProxyFailures *prometheus.CounterVec
}

// New creates all application metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TasksEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "enqueued_total",
			Help:      "Total number of tasks accepted into the queue",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "completed_total",
			Help:      "Total number of tasks completed successfully",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "failed_total",
			Help:      "Total number of tasks that failed",
		}),
		TasksCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "cancelled_total",
			Help:      "Total number of tasks cancelled by the user or by shutdown",
		}),
		TasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Number of tasks owned by the worker (0 or 1)",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of tasks waiting in the queue",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Histogram of task run time in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		DownloadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "downloaded_bytes_total",
			Help:      "Total size of completed output files",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Intermediate progress events dropped because the consumer lagged",
		}),

		ExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "requests_total",
			Help:      "Total number of metadata extractions by result",
		}, []string{"result"}),

		ProxyPicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "picks_total",
			Help:      "Total number of times a proxy was handed to yt-dlp",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of failed proxy health checks",
		}, []string{"proxy"}),
	}
}

// Registry exposes the private registry for tests and exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric to path in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}

// TaskTimer returns a function to record task duration.
func (m *Metrics) TaskTimer() func() {
	start := time.Now()

	return func() {
		m.TaskDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordEnqueued records a task accepted into the queue.
func (m *Metrics) RecordEnqueued() {
	m.TasksEnqueued.Inc()
	m.QueueDepth.Inc()
}

// RecordStarted records a task leaving the queue for the worker.
func (m *Metrics) RecordStarted() {
	m.QueueDepth.Dec()
	m.TasksActive.Set(1)
}

// RecordCompleted records a completed task and its output size.
func (m *Metrics) RecordCompleted(size int64) {
	m.TasksCompleted.Inc()
	m.DownloadedBytes.Add(float64(max(size, 0)))
	m.TasksActive.Set(0)
}

// RecordFailed records a failed task.
func (m *Metrics) RecordFailed() {
	m.TasksFailed.Inc()
	m.TasksActive.Set(0)
}

// RecordCancelled records a cancelled task.
func (m *Metrics) RecordCancelled() {
	m.TasksCancelled.Inc()
	m.TasksActive.Set(0)
}

// RecordDropped records an intermediate progress event that was not delivered.
func (m *Metrics) RecordDropped() {
	m.EventsDropped.Inc()
}

// RecordExtraction records a metadata extraction outcome.
func (m *Metrics) RecordExtraction(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}

	m.ExtractionsTotal.WithLabelValues(result).Inc()
}

// RecordProxyPick records a proxy handed to yt-dlp.
func (m *Metrics) RecordProxyPick(proxy string) {
	m.ProxyPicks.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a failed proxy health check.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}
