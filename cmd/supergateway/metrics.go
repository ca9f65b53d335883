package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusMetrics is the default capability.Metrics implementation.
type prometheusMetrics struct {
	requests          *prometheus.HistogramVec
	partitions        *prometheus.HistogramVec
	solverIterations  prometheus.Histogram
}

func newPrometheusMetrics() *prometheusMetrics {
	return &prometheusMetrics{
		requests: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "supergateway_request_duration_seconds",
			Help: "Gateway request latency by operation and outcome.",
		}, []string{"operation", "ok"}),
		partitions: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "supergateway_partition_duration_seconds",
			Help: "Subgraph partition latency by subgraph and outcome.",
		}, []string{"subgraph", "ok"}),
		solverIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "supergateway_solver_iterations",
			Help: "Fixed-point iterations spent per solve.",
		}),
	}
}

func (m *prometheusMetrics) ObserveRequest(operationName string, d time.Duration, ok bool) {
	m.requests.WithLabelValues(operationName, boolLabel(ok)).Observe(d.Seconds())
}

func (m *prometheusMetrics) ObservePartition(subgraph string, d time.Duration, ok bool) {
	m.partitions.WithLabelValues(subgraph, boolLabel(ok)).Observe(d.Seconds())
}

func (m *prometheusMetrics) ObserveSolverIterations(n int) {
	m.solverIterations.Observe(float64(n))
}

func boolLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
