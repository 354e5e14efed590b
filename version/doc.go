// Package version provides build version information for the info
// endpoint and startup logs.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/quotelab/feedgate/version.Version=1.2.0"
//
// Binaries built without ldflags fall back to the module build info
// embedded by the Go toolchain.
package version
