// Package version exposes build metadata of rpm-stager itself.
//
// Version, Commit and BuildTime are injected via ldflags. They are unrelated
// to the package versions passed on the command line.
package version
