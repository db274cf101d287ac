package history

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Record is one row of the tracking table: a single attempt to apply a
	// migration version to a target keyspace.
	Record struct {
		// Version is the migration's numeric version.
		Version int64

		// Description is the human-readable name from the script file.
		Description string

		// Checksum is the content checksum recorded at apply time.
		Checksum string

		// AppliedAt is when the attempt finished.
		AppliedAt time.Time

		// RunID identifies the run that made the attempt.
		RunID uuid.UUID

		// Success reports whether every statement in the script applied.
		Success bool

		// StatementsApplied counts the statements that completed before the
		// attempt finished or halted.
		StatementsApplied int
	}

	// RecordSet indexes the records of one scope by version.
	RecordSet struct {
		// Records holds all rows in ascending version order.
		Records []*Record

		byVersion map[int64]*Record
	}
)

// NewRecordSet builds a RecordSet from rows already in ascending version
// order.
func NewRecordSet(records []*Record) *RecordSet {
	set := &RecordSet{
		Records:   records,
		byVersion: make(map[int64]*Record, len(records)),
	}
	for _, r := range records {
		set.byVersion[r.Version] = r
	}
	return set
}

// Get returns the record for the given version, or nil when the version was
// never attempted.
func (s *RecordSet) Get(version int64) *Record {
	return s.byVersion[version]
}

// MaxApplied returns the highest successfully applied version. The second
// return value is false when no version has succeeded.
func (s *RecordSet) MaxApplied() (int64, bool) {
	for i := len(s.Records) - 1; i >= 0; i-- {
		if s.Records[i].Success {
			return s.Records[i].Version, true
		}
	}
	return 0, false
}

// Failed returns the records of partially applied migrations.
func (s *RecordSet) Failed() []*Record {
	var failed []*Record
	for _, r := range s.Records {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}
