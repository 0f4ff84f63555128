package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/history"
	"boxrun/internal/storage"
)

const suite = `
project: payments
features:
  - name: checkout
    cases:
      - number: PAY-001
        title: card
        labels: [smoke]
        steps:
          - label: seed
            command: "echo seeded"
        command: "true"
      - number: PAY-002
        title: refund
        command: "echo refund failed; exit 1"
  - name: reports
    cases:
      - number: REP-001
        title: daily
        command: "exit 0"
`

func init() {
	color.NoColor = true
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeProject(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultManifestFile), []byte(manifest), 0644))
	return dir
}

// execute runs the CLI with args against a fresh command tree.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg := config.New()
	var flags cli.Flags
	root := &cobra.Command{Use: "boxrun", SilenceUsage: true, SilenceErrors: true}
	NewCommands(cfg, &flags, &out, &errOut).Register(root)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_FullRun(t *testing.T) {
	requireShell(t)
	dir := writeProject(t, suite)

	out, err := execute(t, "run", "-C", dir, "--no-progress", "--run-id", "run-1", "--log-level", "error")
	assert.ErrorIs(t, err, ErrCasesFailed)
	assert.Contains(t, out, "1 case(s) failed")

	cfg := config.New()
	cfg.ProjectPath = dir

	results, err := storage.NewJSONStorage(cfg).Load()
	require.NoError(t, err)
	assert.Equal(t, "run-1", results.Meta.RunID)
	assert.Equal(t, 3, results.Meta.TotalCases)
	assert.Equal(t, 2, results.Meta.PassedCases)
	assert.Equal(t, 1, results.Meta.FailedCases)
	require.Len(t, results.Details, 1)
	assert.Equal(t, "PAY-002", results.Details[0].CaseNumber)

	snap, err := storage.ReadStatus(cfg.GetStatusPath())
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.Equal(t, 3, snap.Counters.Completed)

	store, err := history.Open(context.Background(), history.DriverSQLite, cfg.GetHistoryDSN())
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Recent(context.Background(), "payments", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestRunCommand_Selection(t *testing.T) {
	requireShell(t)
	dir := writeProject(t, suite)

	_, err := execute(t, "run", "-C", dir, "--no-progress", "--label", "smoke", "--history-driver", "none", "--log-level", "error")
	require.NoError(t, err)

	cfg := config.New()
	cfg.ProjectPath = dir
	results, err := storage.NewJSONStorage(cfg).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, results.Meta.TotalCases)
	assert.Equal(t, 1, results.Meta.PassedCases)
	assert.NoFileExists(t, cfg.GetHistoryDSN())
}

func TestRunCommand_ExcludeLabel(t *testing.T) {
	requireShell(t)
	dir := writeProject(t, suite)

	_, err := execute(t, "run", "-C", dir, "--no-progress", "--exclude-label", "SMOKE", "--history-driver", "none", "--log-level", "error")
	require.ErrorIs(t, err, ErrCasesFailed)

	cfg := config.New()
	cfg.ProjectPath = dir
	results, err := storage.NewJSONStorage(cfg).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, results.Meta.TotalCases)
	assert.Equal(t, 1, results.Meta.PassedCases)
	for _, f := range results.Tree.Features {
		for _, c := range f.Cases {
			assert.NotEqual(t, "PAY-001", c.Number)
		}
	}
}

func TestRunCommand_SuccessFlag(t *testing.T) {
	requireShell(t)
	dir := writeProject(t, `
project: flags
features:
  - name: only
    cases:
      - number: F-1
        title: one
        command: "exit 1"
`)
	_, err := execute(t, "run", "-C", dir, "--no-progress", "--success-flag", "1", "--history-driver", "none", "--log-level", "error")
	assert.NoError(t, err)
}

func TestRunCommand_LockedStatus(t *testing.T) {
	dir := writeProject(t, suite)
	cfg := config.New()
	cfg.ProjectPath = dir

	w, err := storage.OpenStatusWriter(cfg.GetStatusPath())
	require.NoError(t, err)
	defer w.Close()

	_, err = execute(t, "run", "-C", dir, "--no-progress")
	assert.ErrorIs(t, err, storage.ErrLocked)
}

func TestListCommand(t *testing.T) {
	dir := writeProject(t, suite)

	out, err := execute(t, "list", "-C", dir, "--cases")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 3 case(s) in 2 feature(s)")
	assert.Contains(t, out, "PAY-002 refund")

	out, err = execute(t, "list", "-C", dir, "--feature", "reports")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 case(s) in 1 feature(s)")
}

func TestStatusAndHistoryAfterRun(t *testing.T) {
	requireShell(t)
	dir := writeProject(t, suite)

	_, err := execute(t, "status", "-C", dir)
	assert.ErrorContains(t, err, "no run recorded yet")

	_, err = execute(t, "run", "-C", dir, "--no-progress", "--run-id", "run-9", "--log-level", "error")
	require.ErrorIs(t, err, ErrCasesFailed)

	out, err := execute(t, "status", "-C", dir, "--steps")
	require.NoError(t, err)
	assert.Contains(t, out, "payments finished")
	assert.Contains(t, out, "seed")

	out, err = execute(t, "status", "-C", dir, "--short")
	require.NoError(t, err)
	assert.Contains(t, out, "2 passed, 1 failed (0 errored)")

	out, err = execute(t, "history", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "run-9")

	out, err = execute(t, "history", "-C", dir, "--run", "run-9")
	require.NoError(t, err)
	assert.Contains(t, out, "REP-001")
}

func TestMissingManifest(t *testing.T) {
	_, err := execute(t, "list", "-C", t.TempDir())
	assert.Error(t, err)
}
