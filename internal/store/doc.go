// Package store persists the repository registry and inspection records in an
// embedded SQLite database. The schema is created and upgraded through
// embedded migrations on open, writes serialize on a single connection with
// transient contention retried, and latest-state queries return the most
// recent record per task reference location while older records remain
// queryable as history.
package store
