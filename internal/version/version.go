// Package version exposes build information injected via -ldflags.
package version

// Build information. Overridden at link time:
//
//	-X github.com/agentdata-cloud/agentdata/internal/version.Version=v0.3.0
var (
	Version = "dev"
	Commit  = "unknown"
)
