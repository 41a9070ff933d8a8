package ports

import (
	"context"
	"time"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

// CacheStore defines the interface for caching derived, non-authoritative
// values such as ranking previews. Implementations could use Redis or
// in-memory storage. Nothing read from a CacheStore may be treated as
// durable; a miss must always be recoverable from the stores.
type CacheStore interface {
	// Get retrieves a cached value by key into dst.
	// Returns true if found, false if not found.
	Get(ctx context.Context, key string, dst any) (bool, error)

	// Set stores a value in the cache with an expiration time.
	// A zero duration means the item doesn't expire.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Delete removes a value from the cache.
	// Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like composite scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Notifier delivers a notification to its recipient. Email and push
// delivery live outside this repository; implementations adapt to them.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher fans out live judging events to interested observers such
// as an admin dashboard. Publishing must never block the caller for long and
// never fails the operation that produced the event.
type EventPublisher interface {
	Publish(projectID string, event LiveEvent)
}

// LiveEvent is a message on the live judging feed.
type LiveEvent struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Live event types.
const (
	LiveJudgementRecorded = "judgement.recorded"
	LiveProjectAdvanced   = "project.advanced"
	LiveProjectCompleted  = "project.completed"
)

// OperationObserver wraps a service operation in tracing and metrics. Start
// returns a derived context and a finish function that must be called
// exactly once with the operation's result.
type OperationObserver interface {
	Start(ctx context.Context, operation string, attrs map[string]string) (context.Context, func(err error))
}

// Metric names passed to MetricsCollector. Collectors route unknown names to
// a generic operation counter or gauge.
const (
	MetricOperations           = "operations_total"
	MetricJudgementsRecorded   = "judgements_recorded_total"
	MetricCompositeScore       = "composite_score"
	MetricHTTPRequests         = "http_requests_total"
	MetricNotifications        = "notifications_total"
	MetricPreviewCacheRequests = "preview_cache_requests_total"
	MetricLiveConnections      = "live_connections"
)
