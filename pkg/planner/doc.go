// Package planner decides which migrations to apply by reconciling the
// scripts on disk against the recorded history.
//
// Planning is pure: it touches neither the cluster nor the filesystem, which
// keeps every policy decision (drift, ordering, missing sources, retries)
// testable without infrastructure. The same plan backs apply, status, and
// validate.
package planner
