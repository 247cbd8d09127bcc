// Package version holds the build version, overridable with
// -ldflags "-X github.com/smalyshev/TabulistBot/pkg/version.Version=...".
package version

// Version is the release of this build.
var Version = "v0.1.0"
