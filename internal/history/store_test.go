package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runSnapshot(id string, started time.Time, failed bool) domain.ProjectSnapshot {
	second := domain.CaseSnapshot{Number: "PAY-002", Title: "refund", Status: domain.StatusPassed, Duration: 30 * time.Millisecond}
	counters := domain.Counters{Completed: 2, Passed: 2}
	if failed {
		second.Status = domain.StatusErrored
		second.Error = "boom"
		counters = domain.Counters{Completed: 2, Passed: 1, Failed: 1, Errored: 1}
	}
	return domain.ProjectSnapshot{
		RunID:     id,
		Name:      "payments",
		StartedAt: started,
		Duration:  1200 * time.Millisecond,
		Counters:  counters,
		Features: []domain.FeatureSnapshot{{
			Name: "checkout",
			Cases: []domain.CaseSnapshot{
				{Number: "PAY-001", Title: "card", Status: domain.StatusPassed, Duration: 10 * time.Millisecond},
				second,
			},
		}},
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	assert.Equal(t, DriverSQLite, s.Driver())

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, runSnapshot("run-a", base, false), false))
	require.NoError(t, s.RecordRun(ctx, runSnapshot("run-b", base.Add(time.Minute), true), true))

	runs, err := s.Recent(ctx, "payments", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)
	assert.True(t, runs[0].Interrupted)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 1, runs[0].Errored)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1200*time.Millisecond, runs[0].Duration)
	assert.True(t, base.Add(time.Minute).Equal(runs[0].StartedAt))
	assert.Equal(t, "run-a", runs[1].RunID)

	runs, err = s.Recent(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = s.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_Cases(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.RecordRun(ctx, runSnapshot("run-a", time.Now(), true), false))

	cases, err := s.Cases(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, 1, cases[0].Seq)
	assert.Equal(t, "PAY-001", cases[0].Number)
	assert.Equal(t, domain.StatusErrored, cases[1].Status)
	assert.Equal(t, "boom", cases[1].Error)
	assert.Equal(t, "checkout", cases[1].Feature)
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.RecordRun(ctx, runSnapshot("run-a", time.Now(), false), false))

	r, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Passed)

	_, err = s.Get(ctx, "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestStore_RecordRunRejects(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	assert.Error(t, s.RecordRun(ctx, domain.ProjectSnapshot{Name: "p"}, false))

	snap := runSnapshot("dup", time.Now(), false)
	require.NoError(t, s.RecordRun(ctx, snap, false))
	assert.Error(t, s.RecordRun(ctx, snap, false))

	cases, err := s.Cases(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, cases, 2, "failed insert must roll back")
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "x")
	assert.Error(t, err)
}

func TestIsValidDatabaseName(t *testing.T) {
	assert.True(t, isValidDatabaseName("boxrun_history"))
	assert.False(t, isValidDatabaseName(""))
	assert.False(t, isValidDatabaseName("x`; DROP"))
}
