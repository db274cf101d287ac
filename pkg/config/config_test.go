package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/cqlward/cqlward/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(strings.NewReader(`
keyspace: app
`))
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Keyspace)
	assert.Equal(t, "migrations", cfg.Dir)
	assert.Equal(t, "cqlward", cfg.History.Keyspace)
	assert.Equal(t, "migration_history", cfg.History.Table)
	assert.Equal(t, config.DefaultReplication, cfg.History.Replication)
	assert.Equal(t, "migration_lease", cfg.Lease.Table)
	assert.Equal(t, config.Duration(10*time.Minute), cfg.Lease.TTL)
	assert.Equal(t, "ignore", cfg.Policy.OnMissingSource)
	assert.False(t, cfg.Policy.AllowOutOfOrder)
	assert.Equal(t, "5.0", cfg.Cluster.Version)
}

func TestLoadConfigFull(t *testing.T) {
	cfg, err := config.LoadConfig(strings.NewReader(`
cluster:
  hosts:
    - node1.internal
    - node2.internal:9043
  port: 9043
  username: migrator
  password: hunter2
  consistency: LOCAL_QUORUM
  timeout: 30s
keyspace: orders
dir: db/migrations
history:
  keyspace: ops
  table: schema_history
  replication: "{ 'class': 'NetworkTopologyStrategy', 'dc1': 3 }"
lease:
  table: schema_lease
  ttl: 15m
policy:
  on_missing_source: error
  allow_out_of_order: true
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"node1.internal", "node2.internal:9043"}, cfg.Cluster.Hosts)
	assert.Equal(t, 9043, cfg.Cluster.Port)
	assert.Equal(t, "migrator", cfg.Cluster.Username)
	assert.Equal(t, "LOCAL_QUORUM", cfg.Cluster.Consistency)
	assert.Equal(t, config.Duration(30*time.Second), cfg.Cluster.Timeout)
	assert.Equal(t, "orders", cfg.Keyspace)
	assert.Equal(t, "db/migrations", cfg.Dir)
	assert.Equal(t, "ops", cfg.History.Keyspace)
	assert.Equal(t, "schema_history", cfg.History.Table)
	assert.Equal(t, "schema_lease", cfg.Lease.Table)
	assert.Equal(t, config.Duration(15*time.Minute), cfg.Lease.TTL)
	assert.Equal(t, "error", cfg.Policy.OnMissingSource)
	assert.True(t, cfg.Policy.AllowOutOfOrder)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{
			name:    "malformed_yaml",
			in:      "keyspace: [unclosed",
			wantErr: "failed to unmarshal config",
		},
		{
			name: "bad_duration",
			in: `
lease:
  ttl: soon
`,
			wantErr: "invalid duration",
		},
		{
			name: "bad_replication",
			in: `
history:
  replication: "{ 'class': 'FooStrategy' }"
`,
			wantErr: "invalid history replication",
		},
		{
			name:    "bad_identifier",
			in:      `keyspace: "app; DROP KEYSPACE x"`,
			wantErr: "keyspace is not a valid identifier",
		},
		{
			name: "bad_missing_source_policy",
			in: `
policy:
  on_missing_source: panic
`,
			wantErr: "invalid on_missing_source policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := config.LoadConfigFile("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}
