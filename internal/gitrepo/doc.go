// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager for sparse shallow retrieval, default branch
// resolution, and commit publication, along with remote URL utilities consumed
// by the registry and fetch services that need structured Git operations.
package gitrepo
