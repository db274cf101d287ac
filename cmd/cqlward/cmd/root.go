package cmd

import (
	"context"
	"os"

	"github.com/cqlward/cqlward/pkg/config"
	"github.com/urfave/cli/v3"
)

var currentConfig *config.Config

// Run creates and executes the main cqlward CLI application with the given
// version and command-line arguments.
//
// Global Flags:
//   - --config, -c: Config file path (defaults to cqlward.yaml, also read
//     from CQLWARD_CONFIG)
//
// The application loads the configuration before any subcommand runs; a
// missing config file is not an error until a command actually needs it, so
// `cqlward init` works in an empty directory.
//
// Example usage:
//
//	err := Run(ctx, "v1.0.0", []string{"cqlward", "apply", "--dry-run"})
func Run(ctx context.Context, version string, args []string) error {
	app := &cli.Command{
		Name:  "cqlward",
		Usage: "A schema migration runner for Cassandra and Scylla",
		Description: `cqlward applies versioned CQL migration scripts to a Cassandra or
Scylla cluster, tracking what ran in a history table and serializing
concurrent runs with a lightweight-transaction lease.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the cqlward config file",
				Sources: cli.EnvVars("CQLWARD_CONFIG"),
				Value:   "cqlward.yaml",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			path := cmd.String("config")

			if _, err := os.Stat(path); os.IsNotExist(err) {
				return ctx, nil
			} else if err != nil {
				return ctx, err
			}

			cfg, err := config.LoadConfigFile(path)
			if err != nil {
				return ctx, err
			}
			currentConfig = cfg
			return ctx, nil
		},
		Commands: []*cli.Command{
			apply(),
			dev(),
			initCmd(),
			status(),
			validate(),
		},
	}

	return app.Run(ctx, args)
}
