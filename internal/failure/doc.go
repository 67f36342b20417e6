// Package failure defines the structured errors returned by the staging
// pipeline.
//
// Callers branch on the Kind (or on the matching sentinel through errors.Is)
// instead of parsing messages: a failed external command, a missing source
// file, a filesystem error, an invalid configuration, a busy staging tree or
// an unresolved placeholder.
package failure
