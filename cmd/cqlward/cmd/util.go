package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cqlward/cqlward/pkg/cassandra"
	"github.com/cqlward/cqlward/pkg/config"
	"github.com/cqlward/cqlward/pkg/executor"
	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/lease"
	"github.com/cqlward/cqlward/pkg/planner"
	"github.com/cqlward/cqlward/pkg/runner"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// Exit codes by failure class, so CI pipelines can branch on what went wrong.
const (
	exitUsage      = 1
	exitDrift      = 2
	exitContention = 3
	exitPartial    = 4
)

type runOptions struct {
	dryRun bool
	owner  string

	// retryVersion is nil unless --retry-version was given; version 0 is a
	// legal value.
	retryVersion *int64
}

func requireConfig() (*config.Config, error) {
	if currentConfig == nil {
		return nil, cli.Exit("cqlward.yaml not found - run 'cqlward init' first to initialize the project", exitUsage)
	}
	return currentConfig, nil
}

func connect(ctx context.Context, cfg *config.Config) (*cassandra.Client, error) {
	client, err := cassandra.NewClient(ctx, cassandra.ClientOptions{
		Hosts:       cfg.Cluster.Hosts,
		Port:        cfg.Cluster.Port,
		Username:    cfg.Cluster.Username,
		Password:    cfg.Cluster.Password,
		Consistency: cfg.Cluster.Consistency,
		Timeout:     time.Duration(cfg.Cluster.Timeout),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to cluster")
	}
	return client, nil
}

func buildRunner(cfg *config.Config, conn cassandra.Conn, opts runOptions) (*runner.Runner, error) {
	// The replication object was validated at config load; render it in
	// canonical form for CREATE KEYSPACE.
	replication, err := config.ParseReplication(cfg.History.Replication)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store := history.New(conn, history.Options{
		Keyspace:    cfg.History.Keyspace,
		Table:       cfg.History.Table,
		Scope:       cfg.Keyspace,
		Replication: replication.CQL(),
	})

	leases := lease.New(conn, lease.Options{
		Keyspace: cfg.History.Keyspace,
		Table:    cfg.Lease.Table,
		Name:     cfg.Keyspace,
	})

	return runner.New(runner.Options{
		Source:   os.DirFS(cfg.Dir),
		History:  store,
		Leases:   leases,
		Applier:  executor.New(conn, logger),
		Keyspace: cfg.Keyspace,
		Owner:    opts.owner,
		LeaseTTL: time.Duration(cfg.Lease.TTL),
		Planner: planner.Options{
			OnMissingSource: cfg.Policy.OnMissingSource,
			AllowOutOfOrder: cfg.Policy.AllowOutOfOrder,
			RetryVersion:    opts.retryVersion,
		},
		DryRun: opts.dryRun,
		Logger: logger,
	}), nil
}

// exitErr maps an error onto the CLI's exit code taxonomy. Errors that are
// already cli.Exit values pass through unchanged.
func exitErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(cli.ExitCoder); ok {
		return err
	}

	var (
		drift    *planner.DriftError
		ordering *planner.OrderingError
		failed   *planner.FailedError
		held     *lease.HeldError
		steal    *lease.StealFailedError
		notHeld  *lease.NotHeldError
		stmt     *executor.StatementError
	)
	switch {
	case errors.As(err, &stmt):
		return cli.Exit(err.Error(), exitPartial)
	case errors.As(err, &held), errors.As(err, &steal), errors.As(err, &notHeld):
		return cli.Exit(err.Error(), exitContention)
	case errors.As(err, &drift), errors.As(err, &ordering), errors.As(err, &failed):
		return cli.Exit(err.Error(), exitDrift)
	default:
		return cli.Exit(err.Error(), exitUsage)
	}
}

func reportResults(w io.Writer, summary *runner.Summary) {
	for _, res := range summary.Results {
		mark := "✅"
		if !res.Success {
			mark = "❌"
		}
		fmt.Fprintf(w, "%s V%d (%d/%d statements, %s)\n",
			mark, res.Version, res.StatementsApplied, res.TotalStatements,
			res.Duration.Round(time.Millisecond))
	}
}
