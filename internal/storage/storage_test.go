package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/config"
	"boxrun/internal/domain"
)

func sampleSnapshot() domain.ProjectSnapshot {
	return domain.ProjectSnapshot{
		RunID:    "run-1",
		Name:     "payments",
		Duration: 1500 * time.Millisecond,
		Counters: domain.Counters{Completed: 2, Passed: 1, Failed: 1},
		Features: []domain.FeatureSnapshot{{
			Name: "checkout",
			Cases: []domain.CaseSnapshot{
				{Number: "PAY-001", Status: domain.StatusPassed},
				{Number: "PAY-002", Status: domain.StatusFailed},
			},
		}},
	}
}

func TestJSONStorage_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.ProjectPath = dir

	store := NewJSONStorage(cfg)
	assert.Equal(t, cfg.GetOutputPath(), store.Path())

	failures := []domain.Failure{{Feature: "checkout", CaseNumber: "PAY-002", Status: domain.StatusFailed, Message: "exit code 1"}}
	out := NewResults(sampleSnapshot(), failures, false)
	require.NoError(t, store.Save(out))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "payments", loaded.Meta.Project)
	assert.Equal(t, 2, loaded.Meta.TotalCases)
	assert.Equal(t, 1, loaded.Meta.PassedCases)
	assert.Equal(t, 1, loaded.Meta.FailedCases)
	assert.Equal(t, "1.5s", loaded.Meta.Duration)
	require.Len(t, loaded.Details, 1)
	assert.Equal(t, domain.StatusFailed, loaded.Details[0].Status)
	assert.Equal(t, domain.StatusFailed, loaded.Tree.Features[0].Cases[1].Status)
}

func TestJSONStorage_LoadMissing(t *testing.T) {
	store := NewJSONStorageAt(filepath.Join(t.TempDir(), "nope.json"))
	_, err := store.Load()
	assert.Error(t, err)
}

func TestNewResults_EmptyFailures(t *testing.T) {
	out := NewResults(domain.ProjectSnapshot{Name: "empty"}, nil, true)
	assert.NotNil(t, out.Details)
	assert.True(t, out.Meta.Interrupted)
	assert.Zero(t, out.Meta.TotalCases)
}

func TestAtomicWrite_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")
	require.NoError(t, atomicWrite(path, []byte("{}")))
	require.NoError(t, atomicWrite(path, []byte(`{"a":1}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStatusWriter_Lock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")

	w, err := OpenStatusWriter(path)
	require.NoError(t, err)

	active, err := Active(path)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = OpenStatusWriter(path)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, w.Close())

	active, err = Active(path)
	require.NoError(t, err)
	assert.False(t, active)

	w2, err := OpenStatusWriter(path)
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestStatusWriter_ObserveAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w, err := OpenStatusWriter(path)
	require.NoError(t, err)
	defer w.Close()

	snap := sampleSnapshot()
	snap.Running = true
	w.Observe(snap)
	require.NoError(t, w.Err())

	got, err := ReadStatus(path)
	require.NoError(t, err)
	assert.True(t, got.Running)
	assert.Equal(t, "run-1", got.RunID)

	snap.Running = false
	w.Finish(snap)
	got, err = ReadStatus(path)
	require.NoError(t, err)
	assert.False(t, got.Running)
	assert.Equal(t, 2, got.Counters.Completed)
}

func TestReadStatus_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err := ReadStatus(path)
	assert.Error(t, err)
}
