// Package version exposes shared-alarm build metadata.
//
// Version, Commit and BuildTime are set through ldflags at build time.
// UserAgent tags device metadata with the reporting binary and release.
package version
