// Package repos manages the repository registry consumed by inspection runs.
// It registers remotes with derived or explicit names, resolves default
// branches, and exposes the repo command tree.
package repos
