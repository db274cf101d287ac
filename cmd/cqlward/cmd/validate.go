package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// validate returns the CLI command that checks sources and history without
// writing anything: script names parse, versions are unique, statements
// split, and nothing applied has drifted. Intended as a CI gate:
//
//	cqlward validate
func validate() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate migration scripts against recorded history",
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

			if err := r.Validate(ctx); err != nil {
				return exitErr(err)
			}

			fmt.Fprintln(cmd.Root().Writer, "migrations are valid")
			return nil
		},
	}
}
