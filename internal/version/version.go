// Package version provides build-time version information.
package version

// version is set at build time via -ldflags "-X alerthub/internal/version.version=...".
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the current version.
func String() string {
	return version
}

// UserAgent is the User-Agent header alerthub sends to the hub.
func UserAgent() string {
	return "alerthub/" + version
}
