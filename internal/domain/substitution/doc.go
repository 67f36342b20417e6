// Package substitution holds the placeholder table used to render package
// templates and destination paths.
//
// Placeholders have the cmake-style form @TOKEN@. A Table is built once per
// run and never changes afterwards.
package substitution
