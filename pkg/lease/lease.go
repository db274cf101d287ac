package lease

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cqlward/cqlward/pkg/cassandra"
	"github.com/cqlward/cqlward/pkg/utils"
	"github.com/pkg/errors"
)

type (
	// Lease is a held lease. Owner and ExpiresAt together form the CAS token
	// for renewal and release; keep the struct the coordinator returned.
	Lease struct {
		Name       string
		Owner      string
		AcquiredAt time.Time
		ExpiresAt  time.Time
	}

	// Options configures a Coordinator.
	Options struct {
		// Keyspace is the keyspace holding the lease table.
		Keyspace string

		// Table is the lease table name.
		Table string

		// Name identifies the lease row; conventionally the target keyspace,
		// so runs against different keyspaces do not contend.
		Name string

		// Clock overrides time.Now in tests.
		Clock func() time.Time
	}

	// Coordinator acquires, renews, and releases a named lease.
	Coordinator struct {
		conn      cassandra.Conn
		qualified string
		name      string
		clock     func() time.Time
	}

	// HeldError is returned when the lease is held by another live owner.
	HeldError struct {
		Owner     string
		ExpiresAt time.Time
	}

	// StealFailedError is returned when an expired lease was taken over by a
	// competing runner between observation and steal.
	StealFailedError struct {
		Owner string
	}

	// NotHeldError is returned when a renew or release finds the lease no
	// longer owned by the caller.
	NotHeldError struct {
		Owner string
	}
)

func (e *HeldError) Error() string {
	return fmt.Sprintf("lease held by %s until %s", e.Owner, e.ExpiresAt.Format(time.RFC3339))
}

func (e *StealFailedError) Error() string {
	return fmt.Sprintf("expired lease was taken by %s first", e.Owner)
}

func (e *NotHeldError) Error() string {
	if e.Owner == "" {
		return "lease is no longer held"
	}
	return fmt.Sprintf("lease is now held by %s", e.Owner)
}

// New creates a Coordinator over an established cluster connection.
func New(conn cassandra.Conn, opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Coordinator{
		conn:      conn,
		qualified: utils.QualifiedName(opts.Keyspace, opts.Table),
		name:      opts.Name,
		clock:     clock,
	}
}

// EnsureSchema creates the lease table when it does not exist. The keyspace
// is shared with the tracking table and assumed to exist already.
func (c *Coordinator) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name text PRIMARY KEY,
		owner text,
		acquired_at timestamp,
		expires_at timestamp
	)`, c.qualified)
	if err := c.conn.Exec(ctx, stmt); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exist") {
		return errors.Wrapf(err, "failed to create table %s", c.qualified)
	}
	return nil
}

// TryAcquire attempts to take the lease for owner with the given validity
// window. It makes a single attempt; a lease held by a live owner returns a
// HeldError immediately rather than blocking. An expired lease is stolen with
// a second compare-and-set conditioned on the exact row that was observed.
func (c *Coordinator) TryAcquire(ctx context.Context, owner string, ttl time.Duration) (*Lease, error) {
	now := c.clock().UTC().Truncate(time.Millisecond)
	lease := &Lease{
		Name:       c.name,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (name, owner, acquired_at, expires_at) VALUES (?, ?, ?, ?) IF NOT EXISTS",
		c.qualified,
	)
	applied, prev, err := c.conn.ExecCAS(ctx, insert, lease.Name, lease.Owner, lease.AcquiredAt, lease.ExpiresAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire lease %s", c.name)
	}
	if applied {
		return lease, nil
	}

	prevOwner, _ := prev["owner"].(string)
	prevExpires, _ := prev["expires_at"].(time.Time)
	if now.Before(prevExpires) {
		return nil, &HeldError{Owner: prevOwner, ExpiresAt: prevExpires}
	}

	steal := fmt.Sprintf(
		"UPDATE %s SET owner = ?, acquired_at = ?, expires_at = ? WHERE name = ? IF owner = ? AND expires_at = ?",
		c.qualified,
	)
	applied, prev, err = c.conn.ExecCAS(ctx, steal,
		lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.Name,
		prevOwner, prevExpires,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to steal expired lease %s", c.name)
	}
	if !applied {
		newOwner, _ := prev["owner"].(string)
		return nil, &StealFailedError{Owner: newOwner}
	}

	return lease, nil
}

// Renew extends a held lease by ttl from now. The lease's ExpiresAt is
// updated in place so the caller can renew again later.
func (c *Coordinator) Renew(ctx context.Context, lease *Lease, ttl time.Duration) error {
	expires := c.clock().UTC().Truncate(time.Millisecond).Add(ttl)

	stmt := fmt.Sprintf(
		"UPDATE %s SET expires_at = ? WHERE name = ? IF owner = ? AND expires_at = ?",
		c.qualified,
	)
	applied, prev, err := c.conn.ExecCAS(ctx, stmt, expires, lease.Name, lease.Owner, lease.ExpiresAt)
	if err != nil {
		return errors.Wrapf(err, "failed to renew lease %s", c.name)
	}
	if !applied {
		owner, _ := prev["owner"].(string)
		return &NotHeldError{Owner: owner}
	}

	lease.ExpiresAt = expires
	return nil
}

// Release deletes a held lease. Losing the row to expiry and steal before
// release is reported as a NotHeldError; the new holder's lease is untouched.
func (c *Coordinator) Release(ctx context.Context, lease *Lease) error {
	stmt := fmt.Sprintf(
		"DELETE FROM %s WHERE name = ? IF owner = ?",
		c.qualified,
	)
	applied, prev, err := c.conn.ExecCAS(ctx, stmt, lease.Name, lease.Owner)
	if err != nil {
		return errors.Wrapf(err, "failed to release lease %s", c.name)
	}
	if !applied {
		owner, _ := prev["owner"].(string)
		return &NotHeldError{Owner: owner}
	}
	return nil
}
