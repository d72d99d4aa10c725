// Package search scans retrieved pipeline definitions for a substring and
// reports every matching line together with its repository, file, and line
// number. It reuses the sparse retrieval layer and the repository registry
// without recording inspection outcomes.
package search
