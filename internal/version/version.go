package version

// Version contains the application version information.
// Set it at build time:
// go build -ldflags "-X git.home.luguber.info/inful/matrixci/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)
