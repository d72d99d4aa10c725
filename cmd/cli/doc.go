// Package cli constructs the pipealign command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives. It composes the shared store, fetch, policy, credentials, and
// report configuration sections into the narrower views each command consumes.
package cli
