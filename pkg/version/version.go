package version

// Version is the application version, set at build time via ldflags.
// Example: go build -ldflags "-X github.com/tinyopds/tinyopds/pkg/version.Version=2.0.0".
var Version = "2.0-dev"
