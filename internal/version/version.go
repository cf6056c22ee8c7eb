// Package version carries build metadata injected with -ldflags, e.g.
//
//	-X github.com/MeKo-Tech/codescan/internal/version.Version=v1.2.0
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("codescan %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
