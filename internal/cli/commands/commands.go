package commands

import (
	"io"

	"github.com/spf13/cobra"

	"boxrun/internal/cli"
	"boxrun/internal/config"
	"boxrun/internal/execution"
	"boxrun/internal/logger"
	"boxrun/internal/manifest"
	"boxrun/internal/parser"
	"boxrun/internal/storage"
	"boxrun/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Status   *StatusCommand
	Failures *FailuresCommand
	History  *HistoryCommand

	config *config.Config
	flags  *cli.Flags
}

// NewCommands creates all commands with dependencies. cfg is filled in by
// the root pre-run hook once flags are parsed; out receives reports and
// errOut receives logs and progress.
func NewCommands(cfg *config.Config, flags *cli.Flags, out, errOut io.Writer) *Commands {
	runner := execution.NewRunner()
	failureParser := parser.NewFailureParser(parser.DefaultOutputLines)
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(out)
	failureViewer := ui.NewFailureViewer(jsonStorage)

	return &Commands{
		Run:      NewRunCommand(cfg, flags, runner, failureParser, jsonStorage, formatter, failureViewer, errOut),
		List:     NewListCommand(cfg, flags, formatter, jsonStorage),
		Status:   NewStatusCommand(cfg, flags, formatter, out),
		Failures: NewFailuresCommand(jsonStorage, failureViewer),
		History:  NewHistoryCommand(cfg, flags, formatter),
		config:   cfg,
		flags:    flags,
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command) {
	flags, cfg := c.flags, c.config
	cli.AddSettingsFlags(rootCmd, flags)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := flags.LoadConfig(cmd)
		if err != nil {
			return err
		}
		*cfg = *loaded
		return nil
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cases of the manifest",
		Long:  "Build the project tree from the manifest and run every selected case in order",
		Args:  cobra.NoArgs,
		RunE:  c.Run.Execute,
	}
	cli.AddSelectionFlags(runCmd, flags)
	runCmd.Flags().BoolVar(&flags.NoProgress, "no-progress", false, "Do not render the progress bar")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failure viewer when the run finishes with failures")
	runCmd.Flags().StringVar(&flags.RunID, "run-id", "", "Use this run ID instead of a generated one")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List features and cases",
		Long:  "Load the manifest and list its features and cases without running them",
		Args:  cobra.NoArgs,
		RunE:  c.List.Execute,
	}
	cli.AddSelectionFlags(listCmd, flags)
	listCmd.Flags().BoolVarP(&flags.ShowCases, "cases", "c", false, "List cases under each feature")
	rootCmd.AddCommand(listCmd)

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the current or last run",
		Long:  "Read the live status file written by a run and print its counters and tree",
		Args:  cobra.NoArgs,
		RunE:  c.Status.Execute,
	}
	statusCmd.Flags().BoolVar(&flags.Short, "short", false, "Print one summary line")
	statusCmd.Flags().BoolVarP(&flags.ShowSteps, "steps", "s", false, "Include steps in the tree")
	rootCmd.AddCommand(statusCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:     "failures",
		Aliases: []string{"fails"},
		Short:   "View failed cases interactively",
		Long:    "Display the failed cases of the last run in an interactive viewer",
		Args:    cobra.NoArgs,
		RunE:    c.Failures.Execute,
	}
	rootCmd.AddCommand(failuresCmd)

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long:  "List past runs from the history database, or the cases of one run",
		Args:  cobra.NoArgs,
		RunE:  c.History.Execute,
	}
	historyCmd.Flags().IntVarP(&flags.Limit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&flags.AllProjects, "all", false, "Show runs of every project in the database")
	historyCmd.Flags().StringVar(&flags.ShowRun, "run", "", "Show the cases of this run ID")
	rootCmd.AddCommand(historyCmd)
}

// loadManifest loads the configured manifest and applies the selection flags.
func loadManifest(cfg *config.Config) (*manifest.Manifest, error) {
	m, err := manifest.Load(cfg.GetManifestPath())
	if err != nil {
		return nil, err
	}
	return m.Select(manifest.Selection{
		Pattern:       cfg.Flags.Filter,
		Feature:       cfg.Flags.Feature,
		Labels:        cfg.Flags.Labels,
		ExcludeLabels: cfg.Flags.Exclude,
	}), nil
}

func newLogger(cfg *config.Config, w io.Writer) *logger.ConsoleLogger {
	return logger.NewConsoleLogger(w, cfg.LogLevel)
}
