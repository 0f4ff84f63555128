package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/logger"
	"boxrun/internal/storage"
	"boxrun/internal/ui"
)

// StatusCommand handles the status command
type StatusCommand struct {
	config    *config.Config
	flags     *cli.Flags
	formatter *ui.Formatter
	out       io.Writer
}

// NewStatusCommand creates a new StatusCommand
func NewStatusCommand(cfg *config.Config, flags *cli.Flags, formatter *ui.Formatter, out io.Writer) *StatusCommand {
	return &StatusCommand{
		config:    cfg,
		flags:     flags,
		formatter: formatter,
		out:       out,
	}
}

// Execute runs the command
func (sc *StatusCommand) Execute(cmd *cobra.Command, args []string) error {
	path := sc.config.GetStatusPath()
	snap, err := storage.ReadStatus(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no run recorded yet (%s does not exist)", path)
	}
	if err != nil {
		return err
	}

	active, err := storage.Active(path)
	if err != nil {
		return err
	}

	if sc.flags.Short {
		logger.NewConsoleLogger(sc.out, "info").LogRunSummary(*snap)
		return nil
	}

	sc.formatter.PrintStatus(*snap, active)
	fmt.Fprintln(sc.out)
	sc.formatter.PrintTree(*snap, sc.flags.ShowSteps)
	return nil
}
