package domain

import (
	"time"
)

// JobKind identifies what a unit of work does.
type JobKind string

const (
	JobKindGenerate    JobKind = "generate"
	JobKindInvalidate  JobKind = "invalidate"
	JobKindMaintenance JobKind = "maintenance"
	JobKindBatch       JobKind = "batch"
	JobKindBroadcast   JobKind = "broadcast"
)

// JobStatus represents the status of a unit of work
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobSnapshot is an immutable view of a job, safe to hand to other goroutines.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	Message     string     `json:"message,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
