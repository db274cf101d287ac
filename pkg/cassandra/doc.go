// Package cassandra wraps the gocql driver behind the small Conn interface
// the rest of cqlward is written against.
//
// The wrapper exists for two reasons: the tracking table and lease row demand
// specific consistency levels (quorum reads/writes, serial consistency for
// lightweight transactions), and the concrete gocql types are impractical to
// mock in tests. Session management, node discovery, and transport-level
// retries stay inside the driver; cqlward only ever asks it to execute a
// statement, run a compare-and-set, or iterate a result set.
package cassandra
