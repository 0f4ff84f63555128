package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/storage"
	"boxrun/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	flags     *cli.Flags
	formatter *ui.Formatter
	storage   storage.Storage
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	flags *cli.Flags,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		flags:     flags,
		formatter: formatter,
		storage:   st,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	m, err := loadManifest(lc.config)
	if err != nil {
		return err
	}

	if m.CaseCount() == 0 {
		color.Yellow("No cases found")
		return nil
	}

	lc.formatter.PrintManifest(m, lc.flags.ShowCases, lc.lastFailed())
	return nil
}

// lastFailed returns the unresolved failed case numbers of the last run.
// A missing or unreadable results file means nothing is marked.
func (lc *ListCommand) lastFailed() map[string]struct{} {
	results, err := lc.storage.Load()
	if err != nil {
		return nil
	}
	failed := make(map[string]struct{})
	for _, f := range results.Details {
		if f.Feature != "" && !f.Resolved {
			failed[f.CaseNumber] = struct{}{}
		}
	}
	return failed
}
