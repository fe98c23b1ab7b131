// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/deribit-prices/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/deribit-prices/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/deribit-prices/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	         ./cmd/...
//
// A binary built without ldflags falls back to the VCS stamp Go embeds.
package version

import "runtime/debug"

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fillFromBuildInfo(info)
}

func fillFromBuildInfo(info *debug.BuildInfo) {
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if BuildTime == "unknown" && s.Value != "" {
				BuildTime = s.Value
			}
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
