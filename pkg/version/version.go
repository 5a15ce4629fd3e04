package version

import "fmt"

// Set at build time with -ldflags "-X github.com/jonny/switchyard/pkg/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
}

// UserAgent identifies switchyard to providers and the Kubernetes API.
func UserAgent() string {
	return "switchyard/" + Version
}
