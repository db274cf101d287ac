package runner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/cqlward/cqlward/pkg/executor"
	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/lease"
	"github.com/cqlward/cqlward/pkg/migrator"
	"github.com/cqlward/cqlward/pkg/planner"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// releaseTimeout bounds the lease release when the run's own context is
// already cancelled.
const releaseTimeout = 10 * time.Second

type (
	// HistoryStore is the tracking-table surface the runner needs. Satisfied
	// by *history.Store.
	HistoryStore interface {
		EnsureSchema(ctx context.Context) error
		SchemaExists(ctx context.Context) (bool, error)
		ListApplied(ctx context.Context) (*history.RecordSet, error)
		Append(ctx context.Context, rec *history.Record) error
	}

	// LeaseCoordinator is the lease surface the runner needs. Satisfied by
	// *lease.Coordinator.
	LeaseCoordinator interface {
		EnsureSchema(ctx context.Context) error
		TryAcquire(ctx context.Context, owner string, ttl time.Duration) (*lease.Lease, error)
		Renew(ctx context.Context, l *lease.Lease, ttl time.Duration) error
		Release(ctx context.Context, l *lease.Lease) error
	}

	// Applier applies one migration. Satisfied by *executor.Executor.
	Applier interface {
		Apply(ctx context.Context, file *migrator.MigrationFile) *executor.Result
	}

	// Options wires a Runner.
	Options struct {
		// Source is the migration script directory.
		Source fs.FS

		History HistoryStore
		Leases  LeaseCoordinator
		Applier Applier

		// Keyspace is the target keyspace, used for reporting.
		Keyspace string

		// Owner identifies this runner on the lease row. Defaults to
		// host-pid-runid.
		Owner string

		// LeaseTTL is the lease validity window.
		LeaseTTL time.Duration

		// Planner carries the planning policies.
		Planner planner.Options

		// DryRun plans and reports without taking the lease or writing
		// anything.
		DryRun bool

		Logger *slog.Logger

		// Clock overrides time.Now in tests.
		Clock func() time.Time
	}

	// Runner executes migration runs.
	Runner struct {
		opts   Options
		logger *slog.Logger
		clock  func() time.Time
	}

	// Summary describes a completed (or halted) run.
	Summary struct {
		// RunID identifies the run in recorded history. Zero when nothing was
		// applied.
		RunID uuid.UUID

		// Planned is the number of migrations the plan selected.
		Planned int

		// Results holds one entry per attempted migration, in order.
		Results []*executor.Result

		// Warnings carries the plan's non-fatal findings.
		Warnings []string

		// DryRun reports whether the run stopped after planning.
		DryRun bool
	}
)

// New creates a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.Owner == "" {
		opts.Owner = defaultOwner()
	}
	return &Runner{opts: opts, logger: logger, clock: clock}
}

// Run performs a full migration run. Every attempted migration is recorded,
// failed attempts included; the first failure halts the run and is returned
// after its record is written. The lease is renewed before each migration
// after the first, and a plan with nothing pending returns without touching
// the lease at all.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	dir, err := migrator.LoadMigrationDir(r.opts.Source)
	if err != nil {
		return nil, err
	}

	if err := r.opts.History.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if err := r.opts.Leases.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	applied, err := r.opts.History.ListApplied(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planner.Build(dir, applied, r.opts.Planner)
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Warnings {
		r.logger.Warn(w)
	}

	summary := &Summary{
		Planned:  len(plan.Pending),
		Warnings: plan.Warnings,
		DryRun:   r.opts.DryRun,
	}
	if len(plan.Pending) == 0 {
		r.logger.Info("schema is up to date", slog.Int("applied", len(plan.Applied)))
		return summary, nil
	}
	if r.opts.DryRun {
		for _, f := range plan.Pending {
			r.logger.Info("would apply", slog.Int64("version", f.Version), slog.String("description", f.Description))
		}
		return summary, nil
	}

	held, err := r.opts.Leases.TryAcquire(ctx, r.opts.Owner, r.opts.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer r.release(ctx, held)

	summary.RunID = uuid.New()
	r.logger.Info("starting run",
		slog.String("run_id", summary.RunID.String()),
		slog.String("owner", r.opts.Owner),
		slog.Int("pending", len(plan.Pending)),
	)

	for i, file := range plan.Pending {
		// A long apply can outlive the lease TTL; extend it before every
		// migration after the first, and halt if it was lost.
		if i > 0 {
			if err := r.opts.Leases.Renew(ctx, held, r.opts.LeaseTTL); err != nil {
				return summary, errors.Wrap(err, "lost the migration lease mid-run")
			}
		}

		result := r.opts.Applier.Apply(ctx, file)
		summary.Results = append(summary.Results, result)

		rec := &history.Record{
			Version:           file.Version,
			Description:       file.Description,
			Checksum:          file.Checksum,
			AppliedAt:         r.clock(),
			RunID:             summary.RunID,
			Success:           result.Success,
			StatementsApplied: result.StatementsApplied,
		}
		if err := r.opts.History.Append(ctx, rec); err != nil {
			if result.Err != nil {
				// The failed attempt could not be recorded either; report the
				// apply failure, it is the one an operator must resolve.
				r.logger.Error("failed to record failed attempt", slog.Any("error", err))
				return summary, result.Err
			}
			return summary, errors.Wrapf(err, "version %d applied but could not be recorded", file.Version)
		}

		if result.Err != nil {
			return summary, result.Err
		}
	}

	return summary, nil
}

func (r *Runner) release(ctx context.Context, held *lease.Lease) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := r.opts.Leases.Release(releaseCtx, held); err != nil {
		r.logger.Error("failed to release lease", slog.Any("error", err))
	}
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
