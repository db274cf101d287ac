// Package executor applies a migration's statements to the cluster, one at a
// time, in script order.
//
// There is no transaction to lean on: each statement takes effect the moment
// it succeeds, and a failure partway through leaves everything before it
// applied. The executor therefore halts at the first error and reports
// exactly how far it got, so the failure can be recorded and resolved rather
// than papered over.
package executor
