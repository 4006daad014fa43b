package batch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"licenseadmin/pkg/contracts/domain"
)

// Metrics counts per-recipient outcomes.
type Metrics struct {
	Recipients metric.Int64Counter
}

// NewMetrics creates the batch instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	recipients, err := meter.Int64Counter(
		"batch_recipients_total",
		metric.WithDescription("Recipients processed by batch runs, by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{Recipients: recipients}, nil
}

func (m *Metrics) record(ctx context.Context, mode string, a domain.BatchAttempt) {
	if m == nil {
		return
	}

	outcome := "succeeded"
	if !a.Succeeded() {
		outcome = "failed_" + string(a.FailedAt)
	}
	m.Recipients.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
}
