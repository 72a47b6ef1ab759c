// Package version provides build-time version information
// injected via ldflags during compilation.
package version

import "fmt"

// These variables are set at build time via -ldflags, e.g.
//
//	-X github.com/avaropoint/devident/internal/version.Version=1.2.0
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String formats the version for --version output and startup logs.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}
