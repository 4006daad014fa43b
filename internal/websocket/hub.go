package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/events"
)

// broadcastBuffer bounds the number of published messages waiting for the
// hub loop. Publish drops messages beyond it.
const broadcastBuffer = 256

type envelope struct {
	msgType events.MessageType
	data    []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	running bool
	stopped bool

	logger  *slog.Logger
	metrics *Metrics
}

// NewHub creates a new Hub. Run must be called before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
	if m, err := NewMetrics(otel.Meter(infrastructure.MeterName)); err == nil {
		h.metrics = m
	}
	return h
}

// Run processes registrations and broadcasts until ctx is cancelled. It
// closes every client on the way out.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down", slog.Int("clients", h.ClientCount()))
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.connected(ctx)
			h.logger.InfoContext(client.context(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(client)

		case client := <-h.unregister:
			h.remove(ctx, client)

		case env := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			delivered := 0
			for _, c := range targets {
				select {
				case c.send <- env.data:
					delivered++
				default:
					h.metrics.dropped(ctx)
					h.logger.Warn("Client buffer full, disconnecting",
						slog.String("client_id", c.id))
					h.remove(ctx, c)
				}
			}
			h.metrics.sent(ctx, string(env.msgType), delivered)
		}
	}
}

func (h *Hub) greet(c *Client) {
	data, err := encode(events.MessageTypeConnect, map[string]string{
		"status":    "connected",
		"client_id": c.id,
	}, c.traceID)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Failed to send connection message, client buffer full",
			slog.String("client_id", c.id))
	}
}

func (h *Hub) remove(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	lifetime := time.Since(c.connectedAt)
	h.metrics.disconnected(ctx, lifetime)
	h.logger.InfoContext(c.context(), "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", c.id),
		slog.Duration("connection_duration", lifetime))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.running = false
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	close(h.done)
}

// Publish queues a message for every connected client. It never blocks:
// when the hub is backed up or stopped the message is dropped.
func (h *Hub) Publish(msgType events.MessageType, data any, traceID string) {
	payload, err := encode(msgType, data, traceID)
	if err != nil {
		h.logger.Error("Failed to encode message",
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- envelope{msgType: msgType, data: payload}:
	default:
		h.logger.Warn("Broadcast buffer full, dropping message",
			slog.String("type", string(msgType)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client. It reports false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. It is a no-op once the hub has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func encode(msgType events.MessageType, data any, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}
