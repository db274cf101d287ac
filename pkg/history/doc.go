// Package history persists and reads the migration tracking table.
//
// Every apply attempt is recorded, successes and failures alike. Successful
// records are the immutable ground truth for drift detection; a failed record
// marks a partially applied script and blocks further planning until an
// operator resolves it. Records for one target keyspace share a single
// partition (the scope column) so a quorum read of the partition yields the
// complete, ordered history.
package history
