package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// RecordingPublisher captures live events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []ports.LiveEvent
}

// Publish implements ports.EventPublisher.
func (p *RecordingPublisher) Publish(_ string, e ports.LiveEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// Types returns the recorded event types in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// RecordingMetrics sums counters by metric name.
type RecordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

// NewRecordingMetrics returns an empty RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{counters: make(map[string]float64), histograms: make(map[string][]float64)}
}

// RecordLatency implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordLatency(string, time.Duration, map[string]string) {}

// RecordCounter implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
}

// RecordGauge implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordGauge(string, float64, map[string]string) {}

// RecordHistogram implements ports.MetricsCollector.
func (m *RecordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], value)
}

// Counter returns the running total of metric.
func (m *RecordingMetrics) Counter(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric]
}

// Histogram returns the observations of metric.
func (m *RecordingMetrics) Histogram(metric string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.histograms[metric]...)
}

// RecordingNotifier captures delivered notifications and can fail on demand.
type RecordingNotifier struct {
	mu        sync.Mutex
	delivered []domain.Notification
	// Fail, when set, decides whether a delivery returns an error.
	Fail func(domain.Notification) error
}

// Notify implements ports.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail != nil {
		if err := n.Fail(note); err != nil {
			return err
		}
	}
	n.delivered = append(n.delivered, note)
	return nil
}

// Delivered returns the successfully delivered notifications.
func (n *RecordingNotifier) Delivered() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.delivered...)
}
