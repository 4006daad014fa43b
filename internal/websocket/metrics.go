package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the hub.
type Metrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	droppedClients     metric.Int64Counter
}

// NewMetrics creates the WebSocket instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesSent, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Messages queued to clients, by type"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		connectionsTotal:   connectionsTotal,
		connectionsActive:  connectionsActive,
		connectionDuration: connectionDuration,
		messagesSent:       messagesSent,
		droppedClients:     dropped,
	}, nil
}

func (m *Metrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *Metrics) disconnected(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) sent(ctx context.Context, msgType string, n int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, int64(n), metric.WithAttributes(attribute.String("type", msgType)))
}

func (m *Metrics) dropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.droppedClients.Add(ctx, 1)
}
