package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Name of the application
	AppName = "accessd"

	// Version of the application
	Version = "0.1.0-dev"

	// Git commit hash of the application
	Revision = "HEAD"
)

func init() {
	resolveFromBuildInfo()
}

// resolveFromBuildInfo fills Version/Revision from Go build metadata when
// ldflags didn't provide real values.
func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	if Version == "0.1.0-dev" || Version == "" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				rev := s.Value
				if len(rev) > 12 {
					rev = rev[:12]
				}
				Revision = rev
			}
		}
	}
}

// Short returns the bare version string.
func Short() string {
	return Version
}

// Detailed returns the version with revision, platform and Go runtime.
func Detailed() string {
	return fmt.Sprintf("%s v%s (%s; %s/%s; %s)",
		AppName, Version, Revision, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
