package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// Dependencies bundles the collaborators shared by the judging services.
// Only Store is required; the rest default to no-ops.
type Dependencies struct {
	// Store is the authoritative persistence backend.
	Store ports.Store
	// Cache holds ranking previews for a short TTL.
	Cache ports.CacheStore
	// Events receives live judging events.
	Events ports.EventPublisher
	// Metrics receives counters and histograms.
	Metrics ports.MetricsCollector
	// Observer wraps operations in spans.
	Observer ports.OperationObserver
	// Logger receives structured logs.
	Logger *slog.Logger
	// Clock stamps judgements and completions.
	Clock func() time.Time
	// Previews tracks preview invalidations. Services that share a Cache
	// must share it too; nil selects a process-wide tracker.
	Previews *PreviewGenerations
}

// ErrNoStore is returned when a service is built without a store.
var ErrNoStore = errors.New("store is required")

func (d Dependencies) withDefaults() (Dependencies, error) {
	if d.Store == nil {
		return d, ErrNoStore
	}
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	if d.Previews == nil {
		d.Previews = defaultPreviews
	}
	return d, nil
}

// PreviewGenerations counts preview invalidations per project, so a preview
// scored before an invalidation is never cached after it.
type PreviewGenerations struct {
	mu  sync.Mutex
	gen map[string]uint64
}

var defaultPreviews = NewPreviewGenerations()

// NewPreviewGenerations returns an empty tracker.
func NewPreviewGenerations() *PreviewGenerations {
	return &PreviewGenerations{gen: make(map[string]uint64)}
}

func (p *PreviewGenerations) current(projectID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen[projectID]
}

func (p *PreviewGenerations) bump(projectID string) {
	p.mu.Lock()
	p.gen[projectID]++
	p.mu.Unlock()
}

// storeIf runs store only while projectID is still at generation gen. The
// lock is held across store so a concurrent bump either precedes the check
// or is followed by its own cache delete.
func (p *PreviewGenerations) storeIf(projectID string, gen uint64, store func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen[projectID] != gen {
		return false
	}
	store()
	return true
}

// previewCacheKey names the cached preview of a project.
func previewCacheKey(projectID string) string { return "ranking:preview:" + projectID }

// invalidatePreview drops a cached preview. Failures are logged, never
// returned: the cache is not authoritative and expires on its own.
func (d Dependencies) invalidatePreview(ctx context.Context, projectID string) {
	if d.Cache == nil {
		return
	}
	d.Previews.bump(projectID)
	if err := d.Cache.Delete(ctx, previewCacheKey(projectID)); err != nil {
		d.Logger.Warn("failed to invalidate ranking preview", "project_id", projectID, "error", err)
	}
}

func (d Dependencies) publish(projectID, eventType string, payload any) {
	d.Events.Publish(projectID, ports.LiveEvent{
		Type:      eventType,
		ProjectID: projectID,
		Payload:   payload,
		At:        d.Clock(),
	})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, ports.LiveEvent) {}

type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)     {}

type noopObserver struct{}

func (noopObserver) Start(ctx context.Context, _ string, _ map[string]string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
