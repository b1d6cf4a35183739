package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder counts operations and their latency on a dedicated
// registry. The CLI flushes it to a node-exporter textfile after each command.
type PrometheusRecorder struct {
	registry  *prometheus.Registry
	total     *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the kittycore collectors on a new registry.
func NewPrometheusRecorder() (*PrometheusRecorder, error) {
	registry := prometheus.NewRegistry()
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kittycore_operations_total",
		Help: "Service operations by outcome.",
	}, []string{"operation", "outcome"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kittycore_operation_duration_seconds",
		Help:    "Service operation latency including persistence.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	for _, c := range []prometheus.Collector{total, durations} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return &PrometheusRecorder{registry: registry, total: total, durations: durations}, nil
}

// Registry exposes the underlying registry for scraping or tests.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	r.total.WithLabelValues(operation, outcome).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// WriteTextfile writes the current metric families to path in the text
// exposition format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
