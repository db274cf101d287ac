package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cqlward/cqlward/pkg/consts"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

const configTemplate = `cluster:
  hosts:
    - 127.0.0.1
keyspace: %s
dir: migrations

# history:
#   keyspace: cqlward
#   table: migration_history
#   replication: "{ 'class': 'NetworkTopologyStrategy', 'dc1': 3 }"
#
# lease:
#   ttl: 10m
#
# policy:
#   on_missing_source: ignore
#   allow_out_of_order: false
`

const sampleMigration = `-- V1__create_example.cql
-- Statements run one at a time, in order. There is no rollback; write every
-- migration to be safe to re-run after a partial failure.

CREATE TABLE IF NOT EXISTS example (
    id uuid PRIMARY KEY,
    created_at timestamp
);
`

// initCmd returns the CLI command that initializes a cqlward project in the
// current directory. Running it twice is safe; existing files are preserved.
//
// Created structure:
//   - cqlward.yaml: Configuration with cluster and keyspace settings
//   - migrations/: Migration script directory
//   - migrations/V1__create_example.cql: Sample script
//
// Example usage:
//
//	cqlward init --keyspace orders
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a project in the current directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keyspace",
				Aliases: []string{"k"},
				Usage:   "target keyspace to use in configuration",
				Value:   "app",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			configPath := cmd.Root().String("config")
			if configPath == "" {
				configPath = "cqlward.yaml"
			}

			if err := writeIfMissing(configPath, fmt.Sprintf(configTemplate, cmd.String("keyspace"))); err != nil {
				return err
			}

			if err := os.MkdirAll("migrations", consts.ModeDir); err != nil {
				return errors.Wrap(err, "failed to create migrations directory")
			}

			samplePath := filepath.Join("migrations", "V1__create_example.cql")
			if err := writeIfMissing(samplePath, sampleMigration); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "initialized project (%s, migrations/)\n", configPath)
			return nil
		},
	}
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat %s", path)
	}

	if err := os.WriteFile(path, []byte(content), consts.ModeFile); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
