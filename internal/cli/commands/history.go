package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/history"
	"boxrun/internal/manifest"
	"boxrun/internal/ui"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	config    *config.Config
	flags     *cli.Flags
	formatter *ui.Formatter
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(cfg *config.Config, flags *cli.Flags, formatter *ui.Formatter) *HistoryCommand {
	return &HistoryCommand{
		config:    cfg,
		flags:     flags,
		formatter: formatter,
	}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	if !hc.config.HistoryEnabled() {
		return errors.New("run history is disabled (history driver is none)")
	}

	ctx := cmd.Context()
	store, err := history.Open(ctx, hc.config.HistoryDriver, hc.config.GetHistoryDSN())
	if err != nil {
		return err
	}
	defer store.Close()

	if hc.flags.ShowRun != "" {
		run, err := store.Get(ctx, hc.flags.ShowRun)
		if err != nil {
			return err
		}
		cases, err := store.Cases(ctx, run.RunID)
		if err != nil {
			return err
		}
		hc.formatter.PrintRunCases(run, cases)
		return nil
	}

	project := ""
	if !hc.flags.AllProjects {
		// The project name comes from the manifest; without one, show all.
		if m, err := manifest.Load(hc.config.GetManifestPath()); err == nil {
			project = m.Project
		}
	}
	runs, err := store.Recent(ctx, project, hc.flags.Limit)
	if err != nil {
		return err
	}
	hc.formatter.PrintHistory(runs)
	return nil
}
