// Package notify delivers the notifications written to the outbox by
// project completion.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// DispatcherConfig tunes the polling loop.
type DispatcherConfig struct {
	// PollInterval is the delay between outbox polls.
	PollInterval time.Duration
	// BatchSize caps the notifications claimed per poll.
	BatchSize int
	// MaxAttempts marks a notification dead after that many failures.
	// Zero retries forever.
	MaxAttempts int
}

// Dispatcher drains the outbox into a Notifier. Several dispatchers may
// run against one store; claims never overlap.
type Dispatcher struct {
	outbox   ports.OutboxStore
	notifier ports.Notifier
	metrics  ports.MetricsCollector
	logger   *slog.Logger
	cfg      DispatcherConfig
}

// NewDispatcher returns a Dispatcher. metrics and logger may be nil.
func NewDispatcher(
	outbox ports.OutboxStore,
	notifier ports.Notifier,
	metrics ports.MetricsCollector,
	logger *slog.Logger,
	cfg DispatcherConfig,
) (*Dispatcher, error) {
	if outbox == nil || notifier == nil {
		return nil, errors.New("outbox store and notifier are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{outbox: outbox, notifier: notifier, metrics: metrics, logger: logger, cfg: cfg}, nil
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox poll failed", "error", err)
			}
		}
	}
}

// DispatchOnce claims one batch and delivers it, returning how many
// notifications were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch, err := d.outbox.ClaimNotifications(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range batch {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.record(n, "failed")
			d.logger.Warn("notification delivery failed",
				"notification_id", n.ID,
				"kind", n.Kind,
				"recipient_id", n.RecipientID,
				"error", err,
			)
			// The release must outlive cancellation of ctx.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			relErr := d.outbox.ReleaseNotification(releaseCtx, n.ID, err.Error(), d.cfg.MaxAttempts)
			cancel()
			if relErr != nil {
				d.logger.Error("failed to release notification", "notification_id", n.ID, "error", relErr)
			}
			continue
		}
		d.record(n, "delivered")
		delivered++
	}
	if len(batch) > 0 {
		d.logger.Debug("outbox batch dispatched", "claimed", len(batch), "delivered", delivered)
	}
	return delivered, nil
}

func (d *Dispatcher) record(n domain.Notification, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordCounter(ports.MetricNotifications, 1, map[string]string{"kind": n.Kind, "outcome": outcome})
}
