// Package events contains the event contracts pushed to WebSocket clients
// of the license admin server.
package events

import (
	"time"

	"licenseadmin/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeJobUpdate         MessageType = "job:update"
	MessageTypeLicensesChanged   MessageType = "licenses:changed"
	MessageTypeMaintenanceStatus MessageType = "maintenance:status"

	MessageTypeConnect MessageType = "connect"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// JobUpdate carries a job snapshot after each state change.
type JobUpdate struct {
	Job domain.JobSnapshot `json:"job"`
}

// MaintenanceStatus is pushed whenever the cached maintenance state changes.
type MaintenanceStatus struct {
	State string `json:"state"`
}
