package cmd

import (
	"context"
	"fmt"

	"github.com/cqlward/cqlward/pkg/consts"
	"github.com/cqlward/cqlward/pkg/docker"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

const devContainerName = "cqlward-dev"

// dev returns the CLI command group for the local development server: a named
// Cassandra container bound to the default CQL port so repeated cqlward runs
// target the same node.
//
// Example usage:
//
//	cqlward dev up
//	cqlward apply
//	cqlward dev down
func dev() *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "Manage the local development Cassandra server",
		Commands: []*cli.Command{
			devUp(),
			devDown(),
		},
	}
}

func devUp() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Start the development server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			version := consts.DefaultCassandraVersion
			if currentConfig != nil && currentConfig.Cluster.Version != "" {
				version = currentConfig.Cluster.Version
			}

			if err := engine.StartCassandra(ctx, devContainerName, version); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "started %s (cassandra:%s) on port %d\n", devContainerName, version, consts.DefaultCQLPort)
			fmt.Fprintln(cmd.Root().Writer, "the node may take a minute to answer CQL")
			return nil
		},
	}
}

func devDown() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "Stop and remove the development server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer closer()

			if err := engine.Stop(ctx, devContainerName); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "stopped %s\n", devContainerName)
			return nil
		},
	}
}

func newEngine() (*docker.Engine, func(), error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create Docker client")
	}
	return docker.NewEngine(dockerClient), func() { _ = dockerClient.Close() }, nil
}
