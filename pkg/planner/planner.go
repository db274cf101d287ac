package planner

import (
	"fmt"

	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/migrator"
)

type (
	// Options holds the policies the plan is built under.
	Options struct {
		// OnMissingSource controls what happens when a successfully applied
		// version has no script on disk: "ignore" records a warning, "error"
		// fails the plan.
		OnMissingSource string

		// AllowOutOfOrder permits pending versions below the highest applied
		// version; they are applied in ascending order with a warning.
		AllowOutOfOrder bool

		// RetryVersion unblocks a previously failed version. The failed
		// record otherwise fails the plan; naming its version explicitly puts
		// the script back into the pending set. Nil retries nothing; zero is
		// a legal version, so absence cannot share its representation.
		RetryVersion *int64
	}

	// Plan is the reconciliation result: what to apply and what to mention.
	Plan struct {
		// Pending lists the migrations to apply, in ascending version order.
		Pending []*migrator.MigrationFile

		// Applied lists the source files already applied successfully.
		Applied []*migrator.MigrationFile

		// Warnings collects non-fatal findings (missing sources under the
		// ignore policy, out-of-order applies).
		Warnings []string
	}
)

// Build reconciles sources against applied history and returns the plan. It
// fails on drift, ordering violations, unresolved failed records, and missing
// sources under the error policy; validation is the same call with the
// resulting pending set ignored.
func Build(sources *migrator.MigrationDir, applied *history.RecordSet, opts Options) (*Plan, error) {
	plan := &Plan{}

	for _, rec := range applied.Records {
		if !rec.Success {
			continue
		}
		file := sources.Find(rec.Version)
		if file == nil {
			if opts.OnMissingSource == "error" {
				return nil, &MissingSourceError{Version: rec.Version}
			}
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("applied version %d has no migration script", rec.Version))
			continue
		}
		if history.Drifted(file, rec) {
			return nil, &DriftError{
				Version:  rec.Version,
				Path:     file.Path,
				Expected: rec.Checksum,
				Actual:   file.Checksum,
			}
		}
		plan.Applied = append(plan.Applied, file)
	}

	for _, rec := range applied.Failed() {
		if opts.retrying(rec.Version) {
			continue
		}
		return nil, &FailedError{Version: rec.Version, StatementsApplied: rec.StatementsApplied}
	}

	maxApplied, bootstrapped := applied.MaxApplied()
	for _, file := range sources.Files {
		rec := applied.Get(file.Version)
		if rec != nil && rec.Success {
			continue
		}
		if bootstrapped && file.Version < maxApplied && !opts.retrying(file.Version) {
			if !opts.AllowOutOfOrder {
				return nil, &OrderingError{Version: file.Version, MaxApplied: maxApplied}
			}
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("version %d applies out of order below version %d", file.Version, maxApplied))
		}
		plan.Pending = append(plan.Pending, file)
	}

	return plan, nil
}

func (o Options) retrying(version int64) bool {
	return o.RetryVersion != nil && *o.RetryVersion == version
}
