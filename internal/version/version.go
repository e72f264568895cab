// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is sent on every outbound backend request.
func UserAgent() string {
	return "hubsearch/" + Version
}

// String returns the version line printed by hubquery --version.
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
