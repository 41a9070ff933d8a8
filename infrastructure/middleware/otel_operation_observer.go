package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var _ ports.OperationObserver = (*OTelOperationObserver)(nil)

// TracerName is the instrumentation scope of the judging core's spans.
const TracerName = "webjam-judging"

// OTelOperationObserver implements ports.OperationObserver with an
// OpenTelemetry span per operation. When a MetricsCollector is supplied it
// also records latency and an outcome counter.
type OTelOperationObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
	now     func() time.Time
}

// NewOTelOperationObserver creates an observer using the global tracer
// provider. metrics may be nil.
func NewOTelOperationObserver(metrics ports.MetricsCollector) *OTelOperationObserver {
	return &OTelOperationObserver{
		metrics: metrics,
		tracer:  otel.Tracer(TracerName),
		now:     time.Now,
	}
}

// Start implements ports.OperationObserver.
func (o *OTelOperationObserver) Start(
	ctx context.Context,
	operation string,
	attrs map[string]string,
) (context.Context, func(err error)) {
	ctx, span := o.tracer.Start(ctx, "webjam."+operation)
	for k, v := range attrs {
		span.SetAttributes(attribute.String("webjam."+k, v))
	}
	started := o.now()

	return ctx, func(err error) {
		defer span.End()

		outcome := Outcome(err)
		if o.metrics != nil {
			o.metrics.RecordLatency(operation, o.now().Sub(started), map[string]string{"operation": operation})
			o.metrics.RecordCounter(ports.MetricOperations, 1, map[string]string{
				"operation": operation,
				"outcome":   outcome,
			})
		}

		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}

		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			span.AddEvent("project.state_rejected", trace.WithAttributes(
				attribute.String("project_id", stateErr.ProjectID),
				attribute.String("status", string(stateErr.Status)),
			))
		}
		span.SetAttributes(attribute.String("webjam.outcome", outcome))
		// Caller mistakes are not span errors; only internal failures are.
		if outcome == OutcomeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

// Operation outcomes used as metric labels.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeState      = "invalid_state"
	OutcomeConflict   = "conflict"
	OutcomeForbidden  = "forbidden"
	OutcomeInternal   = "error"
)

// Outcome classifies err for metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidState):
		return OutcomeState
	case errors.Is(err, domain.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, domain.ErrForbidden):
		return OutcomeForbidden
	default:
		return OutcomeInternal
	}
}
