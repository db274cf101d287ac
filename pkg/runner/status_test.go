package runner_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cqlward/cqlward/pkg/history"
	"github.com/cqlward/cqlward/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestStatusUnbootstrapped(t *testing.T) {
	hist := &fakeHistory{exists: false}
	r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})

	report, err := r.Status(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Bootstrapped)
	assert.Len(t, report.Pending, 2)
	assert.Empty(t, report.Records)
}

func TestStatusPartiallyApplied(t *testing.T) {
	hist := &fakeHistory{exists: true, records: []*history.Record{appliedRecord(t, 1)}}
	r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})

	report, err := r.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Bootstrapped)
	require.Len(t, report.Pending, 1)
	assert.Equal(t, int64(2), report.Pending[0].Version)
	require.Len(t, report.Records, 1)
}

func TestStatusReportsDriftWithState(t *testing.T) {
	drifted := appliedRecord(t, 1)
	drifted.Checksum = "h1:edited-after-apply="
	hist := &fakeHistory{exists: true, records: []*history.Record{drifted}}
	r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})

	report, err := r.Status(context.Background())
	require.Error(t, err)

	var drift *planner.DriftError
	require.ErrorAs(t, err, &drift)
	// The report is still usable so the CLI can render what drifted.
	require.NotNil(t, report)
	assert.Len(t, report.Records, 1)
}

func TestReportWriteTo(t *testing.T) {
	rec := appliedRecord(t, 1)
	rec.AppliedAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	hist := &fakeHistory{exists: true, records: []*history.Record{rec}}
	r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})

	report, err := r.Status(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = report.WriteTo(&buf)
	require.NoError(t, err)

	golden.Assert(t, buf.String(), "status.golden")
}

func TestValidate(t *testing.T) {
	t.Run("unbootstrapped_ok", func(t *testing.T) {
		r := newRunner(&fakeHistory{}, &fakeLeases{}, &fakeApplier{}, planner.Options{})
		assert.NoError(t, r.Validate(context.Background()))
	})

	t.Run("clean_history_ok", func(t *testing.T) {
		hist := &fakeHistory{exists: true, records: []*history.Record{appliedRecord(t, 1)}}
		r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})
		assert.NoError(t, r.Validate(context.Background()))
	})

	t.Run("drift_fails", func(t *testing.T) {
		drifted := appliedRecord(t, 1)
		drifted.Checksum = "h1:edited-after-apply="
		hist := &fakeHistory{exists: true, records: []*history.Record{drifted}}
		r := newRunner(hist, &fakeLeases{}, &fakeApplier{}, planner.Options{})

		var drift *planner.DriftError
		require.ErrorAs(t, r.Validate(context.Background()), &drift)
	})
}
