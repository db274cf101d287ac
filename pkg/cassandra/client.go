package cassandra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/cqlward/cqlward/pkg/consts"
	"github.com/pkg/errors"
)

type (
	// Iter iterates a query result set. Satisfied by *gocql.Iter; Scan
	// advances to the next row and returns false when exhausted. Close
	// returns any error encountered during iteration.
	Iter interface {
		Scan(dest ...any) bool
		Close() error
	}

	// Conn is the cluster surface the migration engine depends on. The
	// history store, lease coordinator, and executor all take a Conn so
	// tests can substitute an in-memory fake.
	Conn interface {
		// Exec runs a statement at the session's default consistency level.
		Exec(ctx context.Context, stmt string, values ...any) error

		// ExecCAS runs a conditional (lightweight transaction) statement at
		// serial consistency. It reports whether the condition held; when it
		// did not, prev holds the current column values of the contended row.
		ExecCAS(ctx context.Context, stmt string, values ...any) (applied bool, prev map[string]any, err error)

		// Query runs a read and returns an iterator over its rows.
		Query(ctx context.Context, stmt string, values ...any) Iter
	}

	// TLSSettings holds optional mutual-TLS file paths for cluster transport.
	TLSSettings struct {
		CAFile   string
		CertFile string
		KeyFile  string
	}

	// ClientOptions configures a cluster connection.
	ClientOptions struct {
		// Hosts lists contact points, either bare host names or host:port.
		// When empty, the CASSANDRA_NODE environment variable is consulted
		// before falling back to 127.0.0.1.
		Hosts []string

		// Port is the native protocol port used for bare host names.
		Port int

		// Keyspace optionally sets the session's default keyspace.
		Keyspace string

		Username string
		Password string

		// Consistency names the default consistency level for all reads and
		// writes (QUORUM when empty). History and lease operations require a
		// level that observes the latest committed write; this is a
		// correctness setting, not a tuning knob.
		Consistency string

		// Timeout bounds individual requests.
		Timeout time.Duration

		TLS TLSSettings
	}

	// Client is a live cluster session implementing Conn.
	Client struct {
		session *gocql.Session
	}

	// ConnectionError reports a failure to reach the cluster.
	ConnectionError struct {
		Hosts []string
		Err   error
	}
)

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", strings.Join(e.Hosts, ","), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewClient connects to the cluster and verifies the session with a trivial
// read before returning.
//
// Example:
//
//	client, err := cassandra.NewClient(ctx, cassandra.ClientOptions{
//		Hosts:       []string{"localhost"},
//		Consistency: "LOCAL_QUORUM",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = []string{NodeAddress("")}
	}

	cluster := gocql.NewCluster(hosts...)
	if opts.Port > 0 {
		cluster.Port = opts.Port
	}
	if opts.Keyspace != "" {
		cluster.Keyspace = opts.Keyspace
	}
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
	}
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
	}
	if opts.TLS.CAFile != "" || opts.TLS.CertFile != "" {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:   opts.TLS.CAFile,
			CertPath: opts.TLS.CertFile,
			KeyPath:  opts.TLS.KeyFile,
		}
	}

	consistency, err := ParseConsistency(opts.Consistency)
	if err != nil {
		return nil, err
	}
	cluster.Consistency = consistency

	// Transient connectivity failures are retried by the driver; statement
	// level application errors are never retried.
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, &ConnectionError{Hosts: hosts, Err: err}
	}

	if err := session.Query("SELECT release_version FROM system.local").WithContext(ctx).Exec(); err != nil {
		session.Close()
		return nil, &ConnectionError{Hosts: hosts, Err: err}
	}

	return &Client{session: session}, nil
}

// Close tears down the cluster session.
func (c *Client) Close() {
	c.session.Close()
}

// Exec implements Conn.
func (c *Client) Exec(ctx context.Context, stmt string, values ...any) error {
	return c.session.Query(stmt, values...).WithContext(ctx).Exec()
}

// ExecCAS implements Conn. The statement must carry an IF clause; the
// returned map holds the contended row's columns when the condition failed.
func (c *Client) ExecCAS(ctx context.Context, stmt string, values ...any) (bool, map[string]any, error) {
	prev := make(map[string]any)
	applied, err := c.session.Query(stmt, values...).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		MapScanCAS(prev)
	if err != nil {
		return false, nil, err
	}
	return applied, prev, nil
}

// Query implements Conn.
func (c *Client) Query(ctx context.Context, stmt string, values ...any) Iter {
	return c.session.Query(stmt, values...).WithContext(ctx).Iter()
}

// NodeAddress resolves a contact point: an explicit host wins, then the
// CASSANDRA_NODE environment variable, then localhost. A bare host name gets
// the default CQL port appended.
func NodeAddress(host string) string {
	if host == "" {
		host = os.Getenv("CASSANDRA_NODE")
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if !strings.Contains(host, ":") {
		return fmt.Sprintf("%s:%d", host, consts.DefaultCQLPort)
	}
	return host
}

// ParseConsistency maps a configuration string onto a driver consistency
// level. An empty string selects QUORUM, the safest default for a tool whose
// reads must observe its own prior writes.
func ParseConsistency(s string) (gocql.Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "QUORUM":
		return gocql.Quorum, nil
	case "ANY":
		return gocql.Any, nil
	case "ONE":
		return gocql.One, nil
	case "TWO":
		return gocql.Two, nil
	case "THREE":
		return gocql.Three, nil
	case "ALL":
		return gocql.All, nil
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum, nil
	case "EACH_QUORUM":
		return gocql.EachQuorum, nil
	case "LOCAL_ONE":
		return gocql.LocalOne, nil
	default:
		return 0, errors.Errorf("unsupported consistency level: %q", s)
	}
}
