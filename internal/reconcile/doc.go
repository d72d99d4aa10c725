// Package reconcile rewrites non-conforming task references to the configured
// standard version. Rewrites replace only the version field's byte span and
// preserve every other byte; overlapping spans abort the file with a conflict
// error. The publisher stages, commits, and pushes rewritten files through the
// git manager and is skipped entirely in dry-run mode.
package reconcile
