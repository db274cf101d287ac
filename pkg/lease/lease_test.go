package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/cqlward/cqlward/pkg/cassandra"
	"github.com/cqlward/cqlward/pkg/lease"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	casCall struct {
		stmt   string
		values []any
	}

	casResult struct {
		applied bool
		prev    map[string]any
		err     error
	}

	fakeConn struct {
		execs   []string
		execErr error
		calls   []casCall
		results []casResult
	}
)

func (c *fakeConn) Exec(_ context.Context, stmt string, _ ...any) error {
	c.execs = append(c.execs, stmt)
	return c.execErr
}

func (c *fakeConn) ExecCAS(_ context.Context, stmt string, values ...any) (bool, map[string]any, error) {
	c.calls = append(c.calls, casCall{stmt: stmt, values: values})
	if len(c.results) == 0 {
		return false, nil, errors.New("unexpected CAS")
	}
	r := c.results[0]
	c.results = c.results[1:]
	return r.applied, r.prev, r.err
}

func (c *fakeConn) Query(context.Context, string, ...any) cassandra.Iter {
	panic("unexpected query")
}

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newCoordinator(conn *fakeConn) *lease.Coordinator {
	return lease.New(conn, lease.Options{
		Keyspace: "cqlward",
		Table:    "migration_lease",
		Name:     "app",
		Clock:    func() time.Time { return testNow },
	})
}

func TestEnsureSchema(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, newCoordinator(conn).EnsureSchema(context.Background()))

	require.Len(t, conn.execs, 1)
	assert.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS cqlward.migration_lease")
}

func TestTryAcquireFree(t *testing.T) {
	conn := &fakeConn{results: []casResult{{applied: true}}}

	got, err := newCoordinator(conn).TryAcquire(context.Background(), "runner-1", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "app", got.Name)
	assert.Equal(t, "runner-1", got.Owner)
	assert.Equal(t, testNow, got.AcquiredAt)
	assert.Equal(t, testNow.Add(10*time.Minute), got.ExpiresAt)

	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].stmt, "IF NOT EXISTS")
}

func TestTryAcquireHeld(t *testing.T) {
	expires := testNow.Add(5 * time.Minute)
	conn := &fakeConn{results: []casResult{
		{applied: false, prev: map[string]any{"owner": "runner-2", "expires_at": expires}},
	}}

	_, err := newCoordinator(conn).TryAcquire(context.Background(), "runner-1", 10*time.Minute)
	require.Error(t, err)

	var held *lease.HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, "runner-2", held.Owner)
	assert.Equal(t, expires, held.ExpiresAt)

	// No steal attempt against a live lease.
	assert.Len(t, conn.calls, 1)
}

func TestTryAcquireStealsExpired(t *testing.T) {
	expired := testNow.Add(-time.Minute)
	conn := &fakeConn{results: []casResult{
		{applied: false, prev: map[string]any{"owner": "runner-2", "expires_at": expired}},
		{applied: true},
	}}

	got, err := newCoordinator(conn).TryAcquire(context.Background(), "runner-1", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "runner-1", got.Owner)

	require.Len(t, conn.calls, 2)
	assert.Contains(t, conn.calls[1].stmt, "IF owner = ? AND expires_at = ?")
	assert.Equal(t, []any{"runner-1", testNow, testNow.Add(10 * time.Minute), "app", "runner-2", expired}, conn.calls[1].values)
}

func TestTryAcquireStealRace(t *testing.T) {
	expired := testNow.Add(-time.Minute)
	conn := &fakeConn{results: []casResult{
		{applied: false, prev: map[string]any{"owner": "runner-2", "expires_at": expired}},
		{applied: false, prev: map[string]any{"owner": "runner-3", "expires_at": testNow.Add(10 * time.Minute)}},
	}}

	_, err := newCoordinator(conn).TryAcquire(context.Background(), "runner-1", 10*time.Minute)
	require.Error(t, err)

	var steal *lease.StealFailedError
	require.ErrorAs(t, err, &steal)
	assert.Equal(t, "runner-3", steal.Owner)
}

func TestTryAcquireError(t *testing.T) {
	conn := &fakeConn{results: []casResult{{err: errors.New("write timeout")}}}

	_, err := newCoordinator(conn).TryAcquire(context.Background(), "runner-1", 10*time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire lease app")
}

func TestRenew(t *testing.T) {
	conn := &fakeConn{results: []casResult{{applied: true}}}
	held := &lease.Lease{Name: "app", Owner: "runner-1", ExpiresAt: testNow.Add(time.Minute)}

	require.NoError(t, newCoordinator(conn).Renew(context.Background(), held, 10*time.Minute))
	assert.Equal(t, testNow.Add(10*time.Minute), held.ExpiresAt)

	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].stmt, "SET expires_at = ?")
	assert.Equal(t, []any{testNow.Add(10 * time.Minute), "app", "runner-1", testNow.Add(time.Minute)}, conn.calls[0].values)
}

func TestRenewLost(t *testing.T) {
	conn := &fakeConn{results: []casResult{
		{applied: false, prev: map[string]any{"owner": "runner-2"}},
	}}
	held := &lease.Lease{Name: "app", Owner: "runner-1", ExpiresAt: testNow}

	err := newCoordinator(conn).Renew(context.Background(), held, 10*time.Minute)
	var notHeld *lease.NotHeldError
	require.ErrorAs(t, err, &notHeld)
	assert.Equal(t, "runner-2", notHeld.Owner)
}

func TestRelease(t *testing.T) {
	conn := &fakeConn{results: []casResult{{applied: true}}}
	held := &lease.Lease{Name: "app", Owner: "runner-1"}

	require.NoError(t, newCoordinator(conn).Release(context.Background(), held))

	require.Len(t, conn.calls, 1)
	assert.Contains(t, conn.calls[0].stmt, "DELETE FROM cqlward.migration_lease")
	assert.Contains(t, conn.calls[0].stmt, "IF owner = ?")
}

func TestReleaseLost(t *testing.T) {
	conn := &fakeConn{results: []casResult{
		{applied: false, prev: map[string]any{"owner": "runner-2"}},
	}}
	held := &lease.Lease{Name: "app", Owner: "runner-1"}

	err := newCoordinator(conn).Release(context.Background(), held)
	var notHeld *lease.NotHeldError
	require.ErrorAs(t, err, &notHeld)
	assert.Equal(t, "runner-2", notHeld.Owner)
}
