package version

// Version is the release version stamped at build time via -ldflags.
var Version = "1.0.0"
