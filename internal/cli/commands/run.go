package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"boxrun/internal/box"
	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/domain"
	"boxrun/internal/execution"
	"boxrun/internal/history"
	"boxrun/internal/manifest"
	"boxrun/internal/metrics"
	"boxrun/internal/parser"
	"boxrun/internal/storage"
	"boxrun/internal/ui"
)

// ErrCasesFailed is returned by the run command when at least one case did
// not pass or the run was interrupted, so the process exits non-zero.
var ErrCasesFailed = errors.New("one or more cases failed")

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	flags     *cli.Flags
	runner    *execution.Runner
	parser    parser.Parser
	storage   storage.Storage
	formatter *ui.Formatter
	viewer    ui.Viewer
	errOut    io.Writer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	flags *cli.Flags,
	runner *execution.Runner,
	p parser.Parser,
	st storage.Storage,
	formatter *ui.Formatter,
	viewer ui.Viewer,
	errOut io.Writer,
) *RunCommand {
	return &RunCommand{
		config:    cfg,
		flags:     flags,
		runner:    runner,
		parser:    p,
		storage:   st,
		formatter: formatter,
		viewer:    viewer,
		errOut:    errOut,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	log := newLogger(rc.config, rc.errOut)

	m, err := loadManifest(rc.config)
	if err != nil {
		return err
	}
	if m.CaseCount() == 0 {
		color.Yellow("No cases to execute")
		return nil
	}

	status, err := storage.OpenStatusWriter(rc.config.GetStatusPath())
	if errors.Is(err, storage.ErrLocked) {
		return fmt.Errorf("a run of this project is already in progress (see `boxrun status`): %w", err)
	}
	if err != nil {
		return err
	}
	defer status.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hooks []box.Hook
	var collector *metrics.Collector
	if rc.config.MetricsAddr != "" {
		collector = metrics.NewCollector()
		hooks = append(hooks, collector)
		go func() {
			if err := collector.Serve(ctx, rc.config.MetricsAddr, log); err != nil {
				log.Warnf("%v", err)
			}
		}()
	}

	project, err := manifest.Build(ctx, m, rc.runner, manifest.BuildOptions{
		SuccessFlag: rc.config.SuccessFlag,
		Timeout:     rc.config.CaseTimeout,
		Logger:      log,
		Hooks:       hooks,
		RunID:       rc.flags.RunID,
	})
	if err != nil {
		return err
	}

	executor := execution.NewSuiteExecutor(rc.config.ProgressInterval, log, status)
	if !rc.config.Flags.NoProgress {
		executor.AddObserver(ui.NewProgressBar(project.CaseCount(), rc.errOut))
	}

	report, err := executor.Execute(ctx, project)
	if err != nil {
		return err
	}
	if err := status.Err(); err != nil {
		log.Warnf("status file: %v", err)
	}

	failures := rc.parser.ParseFailures(report.Snapshot)
	results := storage.NewResults(report.Snapshot, failures, report.Interrupted)
	if err := rc.storage.Save(results); err != nil {
		return fmt.Errorf("failed to save run results: %w", err)
	}

	if collector != nil {
		collector.RecordRun(report.Snapshot, report.Interrupted)
	}
	if rc.config.HistoryEnabled() {
		if err := rc.recordHistory(report.Snapshot, report.Interrupted); err != nil {
			log.Warnf("history: %v", err)
		}
	}

	rc.formatter.PrintSummary(results)

	if rc.config.Flags.OpenFailures && len(failures) > 0 {
		if err := rc.viewer.View(results); err != nil {
			return err
		}
	}

	if report.Failed > 0 || report.Interrupted || anyNotOK(report.Snapshot) {
		return ErrCasesFailed
	}
	return nil
}

// recordHistory uses its own context so an interrupted run is still stored.
func (rc *RunCommand) recordHistory(snap domain.ProjectSnapshot, interrupted bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := history.Open(ctx, rc.config.HistoryDriver, rc.config.GetHistoryDSN())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordRun(ctx, snap, interrupted)
}

// anyNotOK catches failed setup or teardown cases, which are not part of
// the run counters.
func anyNotOK(snap domain.ProjectSnapshot) bool {
	check := func(cs *domain.CaseSnapshot) bool { return cs != nil && cs.Status.NotOK() }
	if check(snap.Setup) || check(snap.Teardown) {
		return true
	}
	for _, f := range snap.Features {
		if check(f.Setup) || check(f.Teardown) {
			return true
		}
	}
	return false
}
