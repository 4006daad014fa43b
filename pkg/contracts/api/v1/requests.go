// Package api contains the admin HTTP API contract definitions.
// Version v1 represents the current stable API version.
package api

import (
	"encoding/json"
	"strings"
)

// GenerateLicenseRequest asks for one new license. MaxUniqueIPs is kept raw
// so that "3", 3 and "three" all reach the cap parser, which owns the rules.
type GenerateLicenseRequest struct {
	MaxUniqueIPs json.RawMessage `json:"maxUniqueIPs"`
	UserName     string          `json:"userName,omitempty"`
	UserEmail    string          `json:"userEmail,omitempty"`
}

// RawCap returns the cap as the operator typed it.
func (r GenerateLicenseRequest) RawCap() string {
	return strings.Trim(strings.TrimSpace(string(r.MaxUniqueIPs)), `"`)
}

// InvalidateLicenseRequest revokes a license key.
type InvalidateLicenseRequest struct {
	License string `json:"license"`
}

// SetMaintenanceRequest sets the server maintenance flag.
type SetMaintenanceRequest struct {
	MaintenanceMode *bool `json:"maintenanceMode" validate:"required"`
}

// BatchIssueRequest starts a batch issuance. Confirmed must be true when
// more than one recipient remains after normalization.
type BatchIssueRequest struct {
	Recipients   []string `json:"recipients"`
	Subject      string   `json:"subject"`
	BodyTemplate string   `json:"bodyTemplate"`
	MaxIPs       int      `json:"maxIPs"`
	Confirmed    bool     `json:"confirmed"`
}

// BroadcastRequest mails one message to many recipients without issuing
// licenses. Confirmed follows the batch rule.
type BroadcastRequest struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"htmlBody"`
	Confirmed  bool     `json:"confirmed"`
}
