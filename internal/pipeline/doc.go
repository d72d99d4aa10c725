// Package pipeline extracts version-bearing task references from CI pipeline files.
//
// The parser scans content line by line so malformed files degrade to zero
// references instead of errors, and every extracted version value carries the
// byte span needed for in-place rewriting. Action families whose version lives
// outside the task identifier are described by ActionShape entries.
package pipeline
