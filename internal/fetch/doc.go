// Package fetch retrieves pipeline definition files from remote repositories
// without materializing full trees. Retrievals run with bounded concurrency,
// failures are isolated per repository and classified from the git output,
// and every checkout lives in a per-run workspace that is removed on all exit
// paths.
package fetch
