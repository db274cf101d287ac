package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/cqlward/cqlward/pkg/cassandra"
	"github.com/cqlward/cqlward/pkg/migrator"
	"github.com/cqlward/cqlward/pkg/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	// Options configures a Store.
	Options struct {
		// Keyspace is the keyspace holding the tracking table.
		Keyspace string

		// Table is the tracking table name.
		Table string

		// Scope partitions the table; conventionally the target keyspace, so
		// several keyspaces can share one tracking table.
		Scope string

		// Replication is the CQL replication object used when the keyspace
		// has to be created.
		Replication string
	}

	// Store reads and writes migration records for one scope.
	Store struct {
		conn        cassandra.Conn
		keyspace    string
		table       string
		qualified   string
		scope       string
		replication string
	}
)

// New creates a Store over an established cluster connection.
func New(conn cassandra.Conn, opts Options) *Store {
	return &Store{
		conn:        conn,
		keyspace:    opts.Keyspace,
		table:       opts.Table,
		qualified:   utils.QualifiedName(opts.Keyspace, opts.Table),
		scope:       opts.Scope,
		replication: opts.Replication,
	}
}

// EnsureSchema creates the tracking keyspace and table when they do not
// exist. Concurrent runners may race the same DDL; "already exists" responses
// from losing the race are not errors.
func (s *Store) EnsureSchema(ctx context.Context) error {
	createKeyspace := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s",
		s.keyspace, s.replication,
	)
	if err := s.conn.Exec(ctx, createKeyspace); err != nil && !alreadyExists(err) {
		return errors.Wrapf(err, "failed to create keyspace %s", s.keyspace)
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		scope text,
		version bigint,
		description text,
		checksum text,
		applied_at timestamp,
		run_id uuid,
		success boolean,
		statements_applied int,
		PRIMARY KEY ((scope), version)
	)`, s.qualified)
	if err := s.conn.Exec(ctx, createTable); err != nil && !alreadyExists(err) {
		return errors.Wrapf(err, "failed to create table %s", s.qualified)
	}

	return nil
}

// SchemaExists reports whether the tracking table has been created. Status
// reporting uses this to distinguish an unbootstrapped cluster from an empty
// history.
func (s *Store) SchemaExists(ctx context.Context) (bool, error) {
	iter := s.conn.Query(ctx,
		"SELECT table_name FROM system_schema.tables WHERE keyspace_name = ? AND table_name = ?",
		s.keyspace, s.table,
	)

	var name string
	found := iter.Scan(&name)
	if err := iter.Close(); err != nil {
		return false, errors.Wrap(err, "failed to query system_schema.tables")
	}
	return found, nil
}

// ListApplied reads every record for the store's scope in ascending version
// order.
func (s *Store) ListApplied(ctx context.Context) (*RecordSet, error) {
	stmt := fmt.Sprintf(
		"SELECT version, description, checksum, applied_at, run_id, success, statements_applied FROM %s WHERE scope = ?",
		s.qualified,
	)
	iter := s.conn.Query(ctx, stmt, s.scope)

	var records []*Record
	for {
		var (
			rec   Record
			runID gocql.UUID
		)
		if !iter.Scan(&rec.Version, &rec.Description, &rec.Checksum, &rec.AppliedAt, &runID, &rec.Success, &rec.StatementsApplied) {
			break
		}
		rec.RunID = uuid.UUID(runID)
		records = append(records, &rec)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to read history for scope %s", s.scope)
	}

	return NewRecordSet(records), nil
}

// Append writes an attempt record. A retried version overwrites its earlier
// failed row, so the table keeps the latest attempt per version.
func (s *Store) Append(ctx context.Context, rec *Record) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (scope, version, description, checksum, applied_at, run_id, success, statements_applied) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.qualified,
	)
	err := s.conn.Exec(ctx, stmt,
		s.scope,
		rec.Version,
		rec.Description,
		rec.Checksum,
		rec.AppliedAt.UTC().Truncate(time.Millisecond),
		gocql.UUID(rec.RunID),
		rec.Success,
		rec.StatementsApplied,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record version %d", rec.Version)
	}
	return nil
}

// Drifted reports whether a source file's content no longer matches the
// checksum recorded when the version was successfully applied. Failed records
// never count as drift; their scripts are expected to change before a retry.
func Drifted(file *migrator.MigrationFile, rec *Record) bool {
	if rec == nil || !rec.Success {
		return false
	}
	return file.Checksum != rec.Checksum
}

func alreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exist")
}
