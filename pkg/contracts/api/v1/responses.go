package api

import (
	"licenseadmin/pkg/contracts"
	"licenseadmin/pkg/contracts/domain"
)

// ListOutcome tells an empty listing apart from a failed one.
type ListOutcome string

const (
	OutcomeLoaded ListOutcome = "loaded"
	OutcomeEmpty  ListOutcome = "empty"
	OutcomeFailed ListOutcome = "failed"
)

// JobAccepted is returned with 202 for every asynchronous operation.
type JobAccepted struct {
	Job       domain.JobSnapshot `json:"job"`
	StatusURL string             `json:"status_url"`
}

// LicenseListResponse is the listing payload. Message is set for the empty
// state so that clients never confuse it with an error.
type LicenseListResponse struct {
	Outcome  ListOutcome      `json:"outcome"`
	Licenses []domain.License `json:"licenses"`
	Message  string           `json:"message,omitempty"`
}

// UserListResponse mirrors LicenseListResponse for users.
type UserListResponse struct {
	Outcome ListOutcome   `json:"outcome"`
	Users   []domain.User `json:"users"`
	Emails  []string      `json:"emails,omitempty"`
	Message string        `json:"message,omitempty"`
}

// MaintenanceResponse reports the confirmed maintenance flag.
type MaintenanceResponse struct {
	MaintenanceMode bool   `json:"maintenanceMode"`
	State           string `json:"state"`
}

// BatchPreviewResponse is what the operator confirms before a batch runs.
type BatchPreviewResponse struct {
	Recipients           []string `json:"recipients"`
	Count                int      `json:"count"`
	ConfirmationRequired bool     `json:"confirmationRequired"`
	SampleBody           string   `json:"sampleBody"`
}

// HistoryResponse lists the local issuance history.
type HistoryResponse struct {
	Records []domain.HistoryRecord `json:"records"`
}

// HealthResponse is served by /healthz.
type HealthResponse struct {
	Status string          `json:"status"`
	Build  contracts.Build `json:"build"`
}

// GenerateResult is the result of a completed generate job.
type GenerateResult struct {
	LicenseKey string `json:"licenseKey"`
}

// InvalidateResult carries the authority's message verbatim.
type InvalidateResult struct {
	Message string `json:"message"`
}

// JobListResponse lists retained jobs with the queue occupancy.
type JobListResponse struct {
	Jobs  []domain.JobSnapshot `json:"jobs"`
	Queue any                  `json:"queue"`
}
