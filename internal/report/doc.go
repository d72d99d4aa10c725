// Package report renders recorded inspection results as csv rows or a
// per-repository markdown summary.
package report
