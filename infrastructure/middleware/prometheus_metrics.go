// Package middleware provides cross-cutting concerns for the judging core:
// Prometheus metrics and OpenTelemetry operation spans.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks service operations, judging activity, composite
// score distribution, HTTP traffic and notification delivery.
type PrometheusMetrics struct {
	operationLatency   *prometheus.HistogramVec
	operationCounter   *prometheus.CounterVec
	judgementsRecorded *prometheus.CounterVec
	compositeScores    *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
	previewCache       *prometheus.CounterVec
	systemGauges       *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg uses the global default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webjam_operation_duration_seconds",
				Help:    "Execution time of judging service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webjam_operations_total",
				Help: "Judging service operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		judgementsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webjam_judgements_recorded_total",
				Help: "Judgements written, including overwrites.",
			},
			[]string{"project_id"},
		),
		compositeScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webjam_composite_score",
				Help:    "Composite scores computed for ranking previews.",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
			[]string{"project_id"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webjam_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webjam_http_request_duration_seconds",
				Help:    "HTTP request duration by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webjam_notifications_total",
				Help: "Outbox notifications by delivery outcome.",
			},
			[]string{"kind", "outcome"},
		),
		previewCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webjam_preview_cache_requests_total",
				Help: "Ranking preview cache lookups by result.",
			},
			[]string{"result"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "webjam_system_state",
				Help: "Current values such as live feed connections.",
			},
			[]string{"metric"},
		),
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

// RecordLatency implements the MetricsCollector interface. Latencies labeled
// with kind=http go to the HTTP histogram; everything else is an operation.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	if labels["kind"] == "http" {
		pm.httpLatency.WithLabelValues(labelOr(labels, "method", "unknown"), operation).Observe(duration.Seconds())
		return
	}
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricOperations:
		pm.operationCounter.WithLabelValues(
			labelOr(labels, "operation", "unknown"),
			labelOr(labels, "outcome", "ok"),
		).Add(value)
	case ports.MetricJudgementsRecorded:
		pm.judgementsRecorded.WithLabelValues(labelOr(labels, "project_id", "unknown")).Add(value)
	case ports.MetricHTTPRequests:
		pm.httpRequests.WithLabelValues(
			labelOr(labels, "method", "unknown"),
			labelOr(labels, "path", "unknown"),
			labelOr(labels, "status", "0"),
		).Add(value)
	case ports.MetricNotifications:
		pm.notifications.WithLabelValues(
			labelOr(labels, "kind", "unknown"),
			labelOr(labels, "outcome", "ok"),
		).Add(value)
	case ports.MetricPreviewCacheRequests:
		pm.previewCache.WithLabelValues(labelOr(labels, "result", "miss")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "outcome", "ok")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricCompositeScore:
		pm.compositeScores.WithLabelValues(labelOr(labels, "project_id", "unknown")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
