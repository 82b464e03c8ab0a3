// Package buildtime tells the version of modelfab binaries.
//
// The version is read from the file VERSION and the commit from revision,
// which the release build rewrites. Both can be overridden with
//
//	go build -ldflags "-X github.com/opst/modelfab/pkg/buildtime.releaseVersion=v1.0.0"
package buildtime

import (
	_ "embed"
	"strings"
)

var (
	//go:embed VERSION
	embeddedVersion string

	//go:embed revision
	embeddedRevision string

	releaseVersion  string
	releaseRevision string
)

func pick(override, embedded string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return strings.TrimSpace(embedded)
}

// Version is the version of modelfab, like "v0.1.0".
func Version() string {
	return pick(releaseVersion, embeddedVersion)
}

// Revision is the commit which the binary is built from.
func Revision() string {
	return pick(releaseRevision, embeddedRevision)
}

// VersionString is "VERSION (commit: REVISION)".
func VersionString() string {
	return Version() + " (commit: " + Revision() + ")"
}
