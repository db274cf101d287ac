// Package runner orchestrates a migration run end to end: discover scripts,
// bootstrap the tracking schema, plan against recorded history, take the
// lease, apply, and record every attempt.
//
// The runner is written against small interfaces for the history store, the
// lease coordinator, and the applier, so the whole flow is testable without a
// cluster. A run with nothing pending never acquires the lease and performs
// no cluster writes, which keeps repeated deploys of an up-to-date schema
// free of side effects.
package runner
