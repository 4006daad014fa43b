// Package health reports whether the admin server can do useful work: the
// authority answers, the job queue has room and the event hub is up.
package health

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/operations"
)

const (
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"

	defaultCheckTimeout = 5 * time.Second
)

// AuthorityChecker is a cheap read-only call against the authority.
// *license.Maintenance satisfies it through Read.
type AuthorityChecker interface {
	Read(ctx context.Context) (bool, error)
}

// QueueStats is implemented by *operations.Queue.
type QueueStats interface {
	Stats() operations.Stats
}

// ClientCounter is implemented by *websocket.Hub.
type ClientCounter interface {
	ClientCount() int
}

// Status represents the health status response
type Status struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// Ready reports whether every checked service is ready.
func (s Status) Ready() bool {
	return s.Status == StatusReady
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Service runs the liveness and readiness checks.
type Service struct {
	authority AuthorityChecker
	queue     QueueStats
	hub       ClientCounter
	timeout   time.Duration
	startTime time.Time
	logger    *slog.Logger
}

// NewService creates a health service. Any dependency may be nil, in
// which case its check is skipped.
func NewService(authority AuthorityChecker, queue QueueStats, hub ClientCounter, logger *slog.Logger) *Service {
	return &Service{
		authority: authority,
		queue:     queue,
		hub:       hub,
		timeout:   defaultCheckTimeout,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health"),
	}
}

// Liveness returns alive as long as the process serves requests.
func (s *Service) Liveness() Status {
	return Status{
		Status:    StatusAlive,
		Timestamp: time.Now().UTC(),
		Version:   config.AppVersion,
		Runtime: map[string]any{
			"uptime_seconds": time.Since(s.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
}

// Readiness checks every dependency. The authority check is bounded by its
// own timeout so a hung server cannot stall the check.
func (s *Service) Readiness(ctx context.Context) Status {
	status := Status{
		Status:    StatusReady,
		Timestamp: time.Now().UTC(),
		Version:   config.AppVersion,
		Services:  make(map[string]ServiceHealth, 3),
	}

	if s.authority != nil {
		status.Services["authority"] = s.checkAuthority(ctx)
	}
	if s.queue != nil {
		status.Services["queue"] = s.checkQueue()
	}
	if s.hub != nil {
		status.Services["websocket"] = ServiceHealth{
			Status:  StatusReady,
			Details: map[string]int{"clients": s.hub.ClientCount()},
		}
	}

	for _, svc := range status.Services {
		if svc.Status != StatusReady {
			status.Status = StatusNotReady
			break
		}
	}

	if !status.Ready() {
		s.logger.WarnContext(ctx, "readiness check failed", slog.Any("services", status.Services))
	}
	return status
}

func (s *Service) checkAuthority(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	on, err := s.authority.Read(ctx)
	if err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: apierrors.UserMessage(err),
			Details: map[string]string{"kind": string(apierrors.KindOf(err))},
		}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Details: map[string]bool{"maintenanceMode": on},
	}
}

func (s *Service) checkQueue() ServiceHealth {
	stats := s.queue.Stats()
	if stats.QueueCap > 0 && stats.QueueSize >= stats.QueueCap {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: "job queue is full",
			Details: stats,
		}
	}
	return ServiceHealth{Status: StatusReady, Details: stats}
}
