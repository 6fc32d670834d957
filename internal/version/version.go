// Package version holds build metadata set at link time:
//
//	go build -ldflags "-X github.com/hazz-dev/statusroll/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent is sent with every probe request.
func UserAgent() string {
	return "statusroll/" + Version
}

// String formats the build metadata for the version command.
func String() string {
	return fmt.Sprintf("statusroll %s (commit %s, built %s)", Version, Commit, Date)
}
