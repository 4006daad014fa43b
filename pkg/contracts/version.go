package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release version shared by the server and licensectl.
	Version = "1.2.0"

	// APIVersion is the version of the admin HTTP API and WebSocket messages
	APIVersion = "v1"
)

// Set with -ldflags "-X licenseadmin/pkg/contracts.GitCommit=..." at release.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Build identifies the running binary.
type Build struct {
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
	Commit     string `json:"commit"`
	BuiltAt    string `json:"builtAt"`
	GoVersion  string `json:"goVersion"`
}

// CurrentBuild describes this binary.
func CurrentBuild() Build {
	return Build{
		Version:    Version,
		APIVersion: APIVersion,
		Commit:     GitCommit,
		BuiltAt:    BuildTime,
		GoVersion:  runtime.Version(),
	}
}

// String is the one-line form printed by -version.
func (b Build) String() string {
	return fmt.Sprintf("%s (api %s, commit %s, built %s, %s)", b.Version, b.APIVersion, b.Commit, b.BuiltAt, b.GoVersion)
}
