// Package inspect orchestrates inspection runs: it retrieves pipeline files
// from registered repositories, classifies every task version against the
// policy, records the outcomes durably, and optionally reconciles divergent
// versions by rewriting and pushing the affected pipelines.
package inspect
