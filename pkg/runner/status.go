package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/migrator"
	"github.com/cqlward/cqlward/pkg/planner"
)

type (
	// Report is the reconciled view of sources and history for display.
	Report struct {
		// Keyspace is the target keyspace the report describes.
		Keyspace string

		// Bootstrapped reports whether the tracking table exists yet.
		Bootstrapped bool

		// Records holds the recorded attempts, ascending by version.
		Records []*history.Record

		// Sources holds the discovered scripts, ascending by version.
		Sources []*migrator.MigrationFile

		// Pending lists what a run would apply, when planning succeeded.
		Pending []*migrator.MigrationFile

		// Warnings carries the plan's non-fatal findings.
		Warnings []string
	}

	reportRow struct {
		version     int64
		description string
		status      string
		appliedAt   string
		statements  string
	}
)

// Status reconciles sources against history without writing anything. When
// planning fails (drift, ordering, an unresolved failed record), the report
// is still returned alongside the error so the caller can render the state
// the error describes.
func (r *Runner) Status(ctx context.Context) (*Report, error) {
	dir, err := migrator.LoadMigrationDir(r.opts.Source)
	if err != nil {
		return nil, err
	}

	report := &Report{Keyspace: r.opts.Keyspace, Sources: dir.Files}

	exists, err := r.opts.History.SchemaExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		report.Pending = dir.Files
		return report, nil
	}
	report.Bootstrapped = true

	applied, err := r.opts.History.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	report.Records = applied.Records

	plan, err := planner.Build(dir, applied, r.opts.Planner)
	if err != nil {
		return report, err
	}
	report.Pending = plan.Pending
	report.Warnings = plan.Warnings
	return report, nil
}

// Validate checks that the sources parse and reconcile cleanly against
// history. It performs no writes; an unbootstrapped cluster validates
// successfully whenever the sources themselves are well formed.
func (r *Runner) Validate(ctx context.Context) error {
	dir, err := migrator.LoadMigrationDir(r.opts.Source)
	if err != nil {
		return err
	}

	exists, err := r.opts.History.SchemaExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	applied, err := r.opts.History.ListApplied(ctx)
	if err != nil {
		return err
	}

	_, err = planner.Build(dir, applied, r.opts.Planner)
	return err
}

// WriteTo renders the report as a table. Implements io.WriterTo.
func (rep *Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	if !rep.Bootstrapped {
		fmt.Fprintf(&buf, "Keyspace %s: history not bootstrapped\n\n", rep.Keyspace)
	} else {
		fmt.Fprintf(&buf, "Keyspace %s\n\n", rep.Keyspace)
	}

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tSTATUS\tAPPLIED AT\tSTATEMENTS")
	for _, row := range rep.rows() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			row.version, row.description, row.status, row.appliedAt, row.statements)
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	for _, warning := range rep.Warnings {
		fmt.Fprintf(&buf, "\nwarning: %s", warning)
	}
	if len(rep.Warnings) > 0 {
		fmt.Fprintln(&buf)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (rep *Report) rows() []reportRow {
	pending := make(map[int64]bool, len(rep.Pending))
	for _, f := range rep.Pending {
		pending[f.Version] = true
	}

	rows := make(map[int64]reportRow)
	for _, f := range rep.Sources {
		rows[f.Version] = reportRow{
			version:     f.Version,
			description: f.Description,
			status:      "pending",
			appliedAt:   "-",
			statements:  fmt.Sprintf("%d", len(f.Statements)),
		}
	}

	for _, rec := range rep.Records {
		status := "applied"
		if !rec.Success {
			status = "failed"
		}
		if pending[rec.Version] {
			status += " (retrying)"
		}
		row := reportRow{
			version:     rec.Version,
			description: rec.Description,
			status:      status,
			appliedAt:   rec.AppliedAt.UTC().Format(time.RFC3339),
			statements:  fmt.Sprintf("%d", rec.StatementsApplied),
		}
		if _, ok := rows[rec.Version]; !ok {
			row.status += " (missing source)"
		}
		rows[rec.Version] = row
	}

	out := make([]reportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out
}
