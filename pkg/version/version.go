// Package version holds the build version, overridden at link time with
// -ldflags "-X stakeout/pkg/version.Version=...".
package version

// Version is the release version of the service.
var Version = "v0.3.0"
