package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
)

// status returns the CLI command that prints the reconciled migration state:
// every version the sources or the history know about, whether it applied,
// failed, or is still pending.
//
// The table is printed even when reconciliation fails, so a drifted or
// blocked history is visible alongside the error that describes it:
//
//	cqlward status
func status() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show applied and pending migrations",
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

			r, err := buildRunner(cfg, client, runOptions{})
			if err != nil {
				return exitErr(err)
			}

			report, err := r.Status(ctx)
			if report != nil {
				if _, werr := report.WriteTo(cmd.Root().Writer); werr != nil {
					return exitErr(werr)
				}
			}
			return exitErr(err)
		},
	}
}
