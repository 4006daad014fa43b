package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/domain"
	"licenseadmin/pkg/contracts/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin server only listens locally; the token middleware guards it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades requests to WebSocket connections registered on hub.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	logger = infrastructure.WithComponent(logger, "websocket.handler")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response
			logger.WarnContext(r.Context(), "WebSocket upgrade failed",
				slog.String("error", err.Error()))
			return
		}

		client := NewClient(hub, NewConnectionWrapper(conn), infrastructure.GetTraceID(r.Context()), logger)
		if !hub.Register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// JobListener forwards job state changes. Register it with Queue.OnUpdate.
func (h *Hub) JobListener() func(domain.JobSnapshot) {
	return func(snap domain.JobSnapshot) {
		h.Publish(events.MessageTypeJobUpdate, events.JobUpdate{Job: snap}, "")
	}
}

// MaintenanceListener forwards maintenance state changes.
func (h *Hub) MaintenanceListener() func(domain.MaintenanceState) {
	return func(state domain.MaintenanceState) {
		h.Publish(events.MessageTypeMaintenanceStatus, events.MaintenanceStatus{State: state.String()}, "")
	}
}

// RefreshListener tells clients to reload the license listing.
func (h *Hub) RefreshListener() func(context.Context) {
	return func(ctx context.Context) {
		h.Publish(events.MessageTypeLicensesChanged, nil, infrastructure.GetTraceID(ctx))
	}
}
