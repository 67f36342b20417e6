// Package packager stages an RPM-installable tree for a prebuilt executable.
//
// A run builds the substitution table from the configuration and the
// caller's versions, renders every template, copies every static file, then
// hands the tree to the external tar and RPM tools. The first failure aborts
// the run and nothing is rolled back; the caller cleans the staging root
// before retrying. Diff renders in memory and reports drift against an
// existing tree without touching it.
package packager
