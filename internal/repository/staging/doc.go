// Package staging owns the on-disk staging tree: it maps manifest
// destinations to guarded paths under the root, renders templates, copies
// static files and holds the lock marker of a running stage.
package staging
