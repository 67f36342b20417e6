// Package manifest describes which files end up in the staging tree.
package manifest
