// Package process runs the external archive and RPM tools.
//
// The packager depends only on the Runner interface, so tests substitute a
// fake and never start real binaries.
package process
