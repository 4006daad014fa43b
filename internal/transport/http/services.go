package http

import (
	"context"

	"licenseadmin/internal/batch"
	"licenseadmin/internal/license"
	"licenseadmin/internal/operations"
	"licenseadmin/pkg/contracts/domain"
)

// LicenseService is the part of *license.Service the handlers use.
type LicenseService interface {
	Generate(ctx context.Context, req license.GenerateRequest) (string, error)
	Invalidate(ctx context.Context, key string) (string, error)
	ListLicenses(ctx context.Context) license.Listing[domain.License]
	ListUsers(ctx context.Context) license.Listing[domain.User]
	History() *license.HistoryStore
}

// MaintenanceService is implemented by *license.Maintenance.
type MaintenanceService interface {
	State() domain.MaintenanceState
	Read(ctx context.Context) (bool, error)
	Set(ctx context.Context, on bool) (bool, error)
	Toggle(ctx context.Context) (bool, error)
}

// BatchService is implemented by *batch.Coordinator.
type BatchService interface {
	Prepare(req domain.BatchRequest) (domain.BatchRequest, error)
	Run(ctx context.Context, req domain.BatchRequest, confirm batch.Confirmer, progress batch.Progress) (*domain.BatchResult, error)
	PrepareBroadcast(req batch.BroadcastRequest) (batch.BroadcastRequest, error)
	Broadcast(ctx context.Context, req batch.BroadcastRequest, confirm batch.Confirmer, progress batch.Progress) (*domain.BatchResult, error)
}

// JobQueue is implemented by *operations.Queue.
type JobQueue interface {
	Submit(ctx context.Context, kind domain.JobKind, fn operations.Func) (*operations.Job, error)
	Get(id string) (*operations.Job, error)
	List(filter operations.JobFilter) []domain.JobSnapshot
	Stats() operations.Stats
}
