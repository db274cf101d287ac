package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// apply returns the CLI command that runs pending migrations against the
// configured cluster.
//
// The run takes the migration lease before writing anything, applies each
// pending script statement by statement, and records every attempt in the
// history table. A statement failure halts the run after its record is
// written; the operator resolves the partial apply and retries that version
// explicitly:
//
//	# Apply everything pending
//	cqlward apply
//
//	# See what would run without touching the cluster
//	cqlward apply --dry-run
//
//	# Retry version 7 after fixing its script
//	cqlward apply --retry-version 7
func apply() *cli.Command {
	return &cli.Command{
		Name:    "apply",
		Aliases: []string{"migrate"},
		Usage:   "Apply pending migrations to the cluster",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "plan and report without applying anything",
			},
			&cli.Int64Flag{
				Name:  "retry-version",
				Usage: "retry this previously failed version",
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "lease owner identity (defaults to host-pid-runid)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			client, err := connect(ctx, cfg)
			if err != nil {
				return exitErr(err)
			}
			defer client.Close()

			opts := runOptions{
				dryRun: cmd.Bool("dry-run"),
				owner:  cmd.String("owner"),
			}
			if cmd.IsSet("retry-version") {
				v := cmd.Int64("retry-version")
				opts.retryVersion = &v
			}

			r, err := buildRunner(cfg, client, opts)
			if err != nil {
				return exitErr(err)
			}

			summary, err := r.Run(ctx)
			if summary != nil {
				reportResults(cmd.Root().Writer, summary)
				if err == nil {
					if summary.DryRun {
						fmt.Fprintf(cmd.Root().Writer, "%d migration(s) pending (dry run)\n", summary.Planned)
					} else if summary.Planned == 0 {
						fmt.Fprintln(cmd.Root().Writer, "schema is up to date")
					} else {
						fmt.Fprintf(cmd.Root().Writer, "applied %d migration(s)\n", len(summary.Results))
					}
				}
			}
			return exitErr(err)
		},
	}
}
