package license

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apierrors "licenseadmin/internal/errors"
)

// Metrics counts license operations by outcome.
type Metrics struct {
	Operations metric.Int64Counter
	Failures   metric.Int64Counter
}

// NewMetrics creates the license operation instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ops, err := meter.Int64Counter(
		"license_operations_total",
		metric.WithDescription("Total number of license operations attempted"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"license_operation_failures_total",
		metric.WithDescription("License operations that failed, by error kind"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{Operations: ops, Failures: failures}, nil
}

func (m *Metrics) record(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}

	m.Operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	if err != nil {
		m.Failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("kind", string(apierrors.KindOf(err))),
		))
	}
}
