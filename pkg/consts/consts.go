package consts

import (
	"os"
	"time"
)

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// DefaultHistoryKeyspace is the keyspace that holds cqlward's tracking tables
	DefaultHistoryKeyspace = "cqlward"

	// DefaultHistoryTable is the table that records applied migrations
	DefaultHistoryTable = "migration_history"

	// DefaultLeaseTable is the table that holds the mutual-exclusion lease row
	DefaultLeaseTable = "migration_lease"

	// DefaultLeaseTTL bounds how long a crashed run can block subsequent runs.
	// It must exceed the worst-case duration of a full apply.
	DefaultLeaseTTL = 10 * time.Minute

	// DefaultCQLPort is the native protocol port appended to bare host names
	DefaultCQLPort = 9042

	// DefaultCassandraVersion is the image tag used by the dev server
	DefaultCassandraVersion = "5.0"
)
