package operations

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"licenseadmin/pkg/contracts/domain"
)

// Metrics instruments the job queue.
type Metrics struct {
	Submitted metric.Int64Counter
	Finished  metric.Int64Counter
	Duration  metric.Float64Histogram
}

// NewMetrics creates the job queue instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	submitted, err := meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Jobs accepted by the queue"),
	)
	if err != nil {
		return nil, err
	}

	finished, err := meter.Int64Counter(
		"jobs_finished_total",
		metric.WithDescription("Jobs that reached a terminal state, by status"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Time from job start to completion"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{Submitted: submitted, Finished: finished, Duration: duration}, nil
}

func (m *Metrics) submitted(ctx context.Context, kind domain.JobKind) {
	if m == nil {
		return
	}
	m.Submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) finished(ctx context.Context, snap domain.JobSnapshot) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", string(snap.Kind)),
		attribute.String("status", string(snap.Status)),
	)
	m.Finished.Add(ctx, 1, attrs)

	if snap.StartedAt != nil && snap.CompletedAt != nil {
		m.Duration.Record(ctx, snap.CompletedAt.Sub(*snap.StartedAt).Seconds(), attrs)
	}
}
