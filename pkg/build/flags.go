// SPDX-License-Identifier: MIT

// Package build carries the metadata stamped into the binary by the linker:
//
//	go build -ldflags "-X fftplot/pkg/build.buildName=fftplot \
//	    -X fftplot/pkg/build.buildVersion=0.1.0 \
//	    -X fftplot/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X fftplot/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run without them and report "unknown".
package build

import (
	"fmt"
	"strings"
)

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var buildFlags = defaultFlags()

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:    "fftplot",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
}

// Initialize copies the linker-provided values into the build information.
// When any is missing it returns an error naming all of them and leaves the
// defaults in place.
func Initialize() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", buildName},
		{"time", buildTime},
		{"commit", buildCommit},
		{"version", buildVersion},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("build: missing ldflags: %s", strings.Join(missing, ", "))
	}

	buildFlags = &ldFlags{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for version output and startup logs.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
