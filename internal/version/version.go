package version

// Build information set by ldflags. Version is compared against a team
// config's ozy_version, so release builds must carry a semantic version.
var (
	Version = "0.1.0"   // Set by goreleaser: -X github.com/arthur-debert/ozy/internal/version.Version={{.Version}}
	Commit  = "unknown" // Set by goreleaser: -X github.com/arthur-debert/ozy/internal/version.Commit={{.Commit}}
	Date    = "unknown" // Set by goreleaser: -X github.com/arthur-debert/ozy/internal/version.Date={{.Date}}
)
