package config

import (
	"time"

	"licenseadmin/pkg/contracts"
)

// Application constants
const (
	AppName    = "licenseadmin"
	AppVersion = contracts.Version

	// Remote authority endpoints
	EndpointGenerateLicense   = "generate-license"
	EndpointInvalidateLicense = "invalidate-license"
	EndpointLicenses          = "licenses"
	EndpointUsers             = "users"
	EndpointGetMaintenance    = "get-maintenance-status"
	EndpointSetMaintenance    = "set-maintenance-mode"

	// Network Timeouts
	DefaultAuthorityTimeout = 10 * time.Second
	MailSendTimeout         = 30 * time.Second

	// File permissions
	HistoryFileMode = 0o600
	ExportFileMode  = 0o644
	DataDirMode     = 0o755
)
