// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars holds the release metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/toeirei/shipmaster/buildvars.Version=v1.0.0 \
//	  -X github.com/toeirei/shipmaster/buildvars.Commit=$(git rev-parse --short HEAD)"
package buildvars

var (
	// Version is empty for local or development builds.
	Version string
	// Commit is the short commit SHA.
	Commit = "dev"
	// Date is the build time in RFC3339.
	Date string
)

// VersionOrDefault returns Version if set, otherwise def.
func VersionOrDefault(def string) string {
	if len(Version) > 0 {
		return Version
	}
	return def
}
