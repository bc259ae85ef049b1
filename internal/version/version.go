// Package version records the build version of sitepulse.
package version

// Version is set at build time via -ldflags.
var Version = "dev"
