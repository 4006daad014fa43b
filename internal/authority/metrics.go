package authority

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apierrors "licenseadmin/internal/errors"
)

// Metrics holds the authority call instruments
type Metrics struct {
	Calls    metric.Int64Counter
	Failures metric.Int64Counter
	Duration metric.Float64Histogram
}

// NewMetrics creates the authority instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	calls, err := meter.Int64Counter(
		"authority_calls_total",
		metric.WithDescription("Total number of calls made to the license authority"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"authority_call_failures_total",
		metric.WithDescription("License authority calls that failed, by error kind"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"authority_call_duration_seconds",
		metric.WithDescription("License authority call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Calls:    calls,
		Failures: failures,
		Duration: duration,
	}, nil
}

func (m *Metrics) record(ctx context.Context, method, endpoint string, kind apierrors.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
	)
	m.Calls.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, elapsed.Seconds(), attrs)

	if kind != apierrors.KindNone {
		m.Failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("kind", string(kind)),
		))
	}
}
