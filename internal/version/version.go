// Package version contains build version information.
package version

// Build metadata, overridden at build time via
// -ldflags "-X github.com/bissquit/oprisk/internal/version.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
