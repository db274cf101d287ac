package config

import (
	"io"
	"os"
	"time"

	"github.com/cqlward/cqlward/pkg/consts"
	"github.com/cqlward/cqlward/pkg/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Duration is a time.Duration that unmarshals from YAML strings like
	// "10m" or "30s".
	Duration time.Duration

	// Cluster holds cluster connection settings.
	Cluster struct {
		// Hosts lists contact points. Bare host names get the default CQL
		// port; when empty the CASSANDRA_NODE environment variable applies.
		Hosts []string `yaml:"hosts,omitempty"`

		// Port overrides the native protocol port for bare host names.
		Port int `yaml:"port,omitempty"`

		Username string `yaml:"username,omitempty"`
		Password string `yaml:"password,omitempty"`

		// Consistency is the default consistency level for all history and
		// lease operations (QUORUM when unset).
		Consistency string `yaml:"consistency,omitempty"`

		// Timeout bounds individual cluster requests.
		Timeout Duration `yaml:"timeout,omitempty"`

		// Version is the Cassandra image tag used by the dev server.
		Version string `yaml:"version,omitempty"`
	}

	// History configures the tracking keyspace and table.
	History struct {
		Keyspace string `yaml:"keyspace,omitempty"`
		Table    string `yaml:"table,omitempty"`

		// Replication is the CQL replication object used when the history
		// keyspace is created, e.g.
		// "{ 'class': 'NetworkTopologyStrategy', 'dc1': 3 }".
		// Defaults to SimpleStrategy with a replication factor of 1, a
		// development-environment setting.
		Replication string `yaml:"replication,omitempty"`
	}

	// Lease configures the mutual-exclusion lease.
	Lease struct {
		Table string `yaml:"table,omitempty"`

		// TTL is the lease validity window. It must exceed the worst-case
		// duration of a full apply; expiry is the only recovery path from a
		// crashed run.
		TTL Duration `yaml:"ttl,omitempty"`
	}

	// Policy holds planner policies that are deliberately configurable
	// rather than hard-coded.
	Policy struct {
		// OnMissingSource controls what happens when an applied version has
		// no corresponding script on disk: "ignore" (warn) or "error".
		OnMissingSource string `yaml:"on_missing_source,omitempty"`

		// AllowOutOfOrder permits applying a version below the maximum
		// applied version instead of failing with an ordering error.
		AllowOutOfOrder bool `yaml:"allow_out_of_order,omitempty"`
	}

	// Config is the project configuration loaded from cqlward.yaml.
	Config struct {
		Cluster Cluster `yaml:"cluster"`

		// Keyspace is the keyspace the migration scripts target. Also used
		// as the history scope, so several keyspaces can share one tracking
		// table.
		Keyspace string `yaml:"keyspace"`

		// Dir is the migration script directory.
		Dir string `yaml:"dir"`

		History History `yaml:"history"`
		Lease   Lease   `yaml:"lease"`
		Policy  Policy  `yaml:"policy"`
	}
)

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "invalid duration: %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadConfig parses a project configuration from the provided reader,
// applying defaults for everything left unset and validating the fields
// whose values are constrained (replication object, missing-source policy).
//
// Example:
//
//	cfg, err := config.LoadConfig(strings.NewReader(`
//	keyspace: app
//	dir: migrations
//	`))
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.Dir == "" {
		cfg.Dir = "migrations"
	}
	if cfg.History.Keyspace == "" {
		cfg.History.Keyspace = consts.DefaultHistoryKeyspace
	}
	if cfg.History.Table == "" {
		cfg.History.Table = consts.DefaultHistoryTable
	}
	if cfg.History.Replication == "" {
		cfg.History.Replication = DefaultReplication
	}
	if cfg.Lease.Table == "" {
		cfg.Lease.Table = consts.DefaultLeaseTable
	}
	if cfg.Lease.TTL == 0 {
		cfg.Lease.TTL = Duration(consts.DefaultLeaseTTL)
	}
	if cfg.Policy.OnMissingSource == "" {
		cfg.Policy.OnMissingSource = "ignore"
	}
	if cfg.Cluster.Version == "" {
		cfg.Cluster.Version = consts.DefaultCassandraVersion
	}

	// These names are interpolated into DDL, so they must be plain
	// identifiers.
	for field, name := range map[string]string{
		"keyspace":         cfg.Keyspace,
		"history.keyspace": cfg.History.Keyspace,
		"history.table":    cfg.History.Table,
		"lease.table":      cfg.Lease.Table,
	} {
		if name != "" && !utils.ValidIdentifier(name) {
			return nil, errors.Errorf("%s is not a valid identifier: %q", field, name)
		}
	}

	if _, err := ParseReplication(cfg.History.Replication); err != nil {
		return nil, errors.Wrap(err, "invalid history replication")
	}
	if cfg.Policy.OnMissingSource != "ignore" && cfg.Policy.OnMissingSource != "error" {
		return nil, errors.Errorf("invalid on_missing_source policy: %q (want ignore or error)", cfg.Policy.OnMissingSource)
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}
