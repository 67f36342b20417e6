// Package config describes one package to stage: its identity, the values of
// the fixed placeholders, the template and static manifests, and the external
// archive and RPM tools.
//
// A configuration is read from YAML or taken from the built-in default that
// stages the pa-wsgo service. It is validated once and treated as immutable
// by the packager, so several packages can be staged from one process.
package config
