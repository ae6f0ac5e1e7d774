// Package version provides build version information for weavelens.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current weavelens version.
// Overridden at build time via -ldflags "-X github.com/weavelens/weavelens/pkg/version.Version=v1.2.3".
var Version = "dev"

// Commit is the git commit hash, set at build time.
var Commit = "unknown"

// BuildDate is the build timestamp, set at build time.
var BuildDate = "unknown"

// Info returns a human-readable version string.
func Info() string {
	return fmt.Sprintf("weavelens %s (commit %s, built %s, %s/%s)",
		Version, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}
