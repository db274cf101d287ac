package history_test

import (
	"context"
	"testing"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/cqlward/cqlward/pkg/cassandra"
	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/migrator"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	execCall struct {
		stmt   string
		values []any
	}

	fakeIter struct {
		rows [][]any
		err  error
		i    int
	}

	fakeConn struct {
		execs    []execCall
		execErr  func(stmt string) error
		queries  []execCall
		rows     [][]any
		queryErr error
	}
)

func (it *fakeIter) Scan(dest ...any) bool {
	if it.i >= len(it.rows) {
		return false
	}
	row := it.rows[it.i]
	it.i++
	for j, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[j].(int64)
		case *int:
			*p = row[j].(int)
		case *string:
			*p = row[j].(string)
		case *bool:
			*p = row[j].(bool)
		case *time.Time:
			*p = row[j].(time.Time)
		case *gocql.UUID:
			*p = row[j].(gocql.UUID)
		}
	}
	return true
}

func (it *fakeIter) Close() error { return it.err }

func (c *fakeConn) Exec(_ context.Context, stmt string, values ...any) error {
	c.execs = append(c.execs, execCall{stmt: stmt, values: values})
	if c.execErr != nil {
		return c.execErr(stmt)
	}
	return nil
}

func (c *fakeConn) ExecCAS(context.Context, string, ...any) (bool, map[string]any, error) {
	return false, nil, errors.New("unexpected CAS")
}

func (c *fakeConn) Query(_ context.Context, stmt string, values ...any) cassandra.Iter {
	c.queries = append(c.queries, execCall{stmt: stmt, values: values})
	return &fakeIter{rows: c.rows, err: c.queryErr}
}

func newStore(conn *fakeConn) *history.Store {
	return history.New(conn, history.Options{
		Keyspace:    "cqlward",
		Table:       "migration_history",
		Scope:       "app",
		Replication: "{'class': 'SimpleStrategy', 'replication_factor': 1}",
	})
}

func TestEnsureSchema(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, newStore(conn).EnsureSchema(context.Background()))

	require.Len(t, conn.execs, 2)
	assert.Contains(t, conn.execs[0].stmt, "CREATE KEYSPACE IF NOT EXISTS cqlward")
	assert.Contains(t, conn.execs[0].stmt, "'class': 'SimpleStrategy'")
	assert.Contains(t, conn.execs[1].stmt, "CREATE TABLE IF NOT EXISTS cqlward.migration_history")
	assert.Contains(t, conn.execs[1].stmt, "PRIMARY KEY ((scope), version)")
}

func TestEnsureSchemaToleratesExisting(t *testing.T) {
	conn := &fakeConn{
		execErr: func(string) error { return errors.New("Keyspace cqlward already exists") },
	}
	require.NoError(t, newStore(conn).EnsureSchema(context.Background()))
}

func TestEnsureSchemaError(t *testing.T) {
	conn := &fakeConn{
		execErr: func(string) error { return errors.New("unavailable") },
	}
	err := newStore(conn).EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create keyspace cqlward")
}

func TestSchemaExists(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"migration_history"}}}
	ok, err := newStore(conn).SchemaExists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	conn = &fakeConn{}
	ok, err = newStore(conn).SchemaExists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListApplied(t *testing.T) {
	runID := gocql.UUID(uuid.MustParse("6e1b2f34-0000-4000-8000-000000000001"))
	appliedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	conn := &fakeConn{rows: [][]any{
		{int64(1), "create users", "h1:abc=", appliedAt, runID, true, 2},
		{int64(2), "add index", "h1:def=", appliedAt, runID, false, 1},
	}}

	set, err := newStore(conn).ListApplied(context.Background())
	require.NoError(t, err)

	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0].stmt, "WHERE scope = ?")
	assert.Equal(t, []any{"app"}, conn.queries[0].values)

	require.Len(t, set.Records, 2)
	assert.Equal(t, int64(1), set.Records[0].Version)
	assert.Equal(t, "create users", set.Records[0].Description)
	assert.Equal(t, uuid.UUID(runID), set.Records[0].RunID)
	assert.True(t, set.Records[0].Success)
	assert.Equal(t, 2, set.Records[0].StatementsApplied)

	max, ok := set.MaxApplied()
	assert.True(t, ok)
	assert.Equal(t, int64(1), max)

	failed := set.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].Version)

	assert.Nil(t, set.Get(99))
	assert.NotNil(t, set.Get(2))
}

func TestListAppliedEmpty(t *testing.T) {
	set, err := newStore(&fakeConn{}).ListApplied(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set.Records)

	_, ok := set.MaxApplied()
	assert.False(t, ok)
}

func TestListAppliedError(t *testing.T) {
	conn := &fakeConn{queryErr: errors.New("read timeout")}
	_, err := newStore(conn).ListApplied(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read history for scope app")
}

func TestAppend(t *testing.T) {
	conn := &fakeConn{}
	rec := &history.Record{
		Version:           3,
		Description:       "add orders",
		Checksum:          "h1:xyz=",
		AppliedAt:         time.Date(2026, 3, 14, 9, 26, 53, 123456789, time.UTC),
		RunID:             uuid.MustParse("6e1b2f34-0000-4000-8000-000000000002"),
		Success:           true,
		StatementsApplied: 4,
	}
	require.NoError(t, newStore(conn).Append(context.Background(), rec))

	require.Len(t, conn.execs, 1)
	assert.Contains(t, conn.execs[0].stmt, "INSERT INTO cqlward.migration_history")

	values := conn.execs[0].values
	require.Len(t, values, 8)
	assert.Equal(t, "app", values[0])
	assert.Equal(t, int64(3), values[1])
	assert.Equal(t, "add orders", values[2])
	assert.Equal(t, "h1:xyz=", values[3])
	assert.Equal(t, time.Date(2026, 3, 14, 9, 26, 53, 123000000, time.UTC), values[4])
	assert.Equal(t, gocql.UUID(rec.RunID), values[5])
	assert.Equal(t, true, values[6])
	assert.Equal(t, 4, values[7])
}

func TestDrifted(t *testing.T) {
	file := &migrator.MigrationFile{Version: 1, Checksum: "h1:abc="}

	assert.False(t, history.Drifted(file, nil))
	assert.False(t, history.Drifted(file, &history.Record{Version: 1, Checksum: "h1:other=", Success: false}))
	assert.False(t, history.Drifted(file, &history.Record{Version: 1, Checksum: "h1:abc=", Success: true}))
	assert.True(t, history.Drifted(file, &history.Record{Version: 1, Checksum: "h1:other=", Success: true}))
}
