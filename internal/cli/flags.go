package cli

import (
	"github.com/spf13/cobra"

	"boxrun/internal/config"
)

// Flags holds command-line flags
type Flags struct {
	ProjectPath  string
	Filter       string
	Feature      string
	Labels       []string
	Exclude      []string
	NoProgress   bool
	OpenFailures bool
	RunID        string

	// list / status / history
	ShowCases   bool
	ShowSteps   bool
	Short       bool
	Limit       int
	AllProjects bool
	ShowRun     string
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Filter:       f.Filter,
		Feature:      f.Feature,
		Labels:       f.Labels,
		Exclude:      f.Exclude,
		NoProgress:   f.NoProgress,
		OpenFailures: f.OpenFailures,
	}
}

// LoadConfig resolves the configuration for cmd. Settings flags defined on
// cmd (or inherited from the root) override environment and .env values.
func (f *Flags) LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(f.ProjectPath, cmd.Flags(), f.ToConfigFlags())
}

// AddSettingsFlags registers the flags that map onto config keys.
func AddSettingsFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.ProjectPath, "project", "C", config.DefaultProjectPath, "Project directory (holds the manifest and .env)")
	pf.StringP("manifest", "m", config.DefaultManifestFile, "Manifest file, relative to the project")
	pf.Int("success-flag", config.DefaultSuccessFlag, "Return code that marks a case as passed")
	pf.String("output-dir", config.DefaultOutputJSONDir, "Directory for results, status and history files")
	pf.String("output-file", config.DefaultOutputJSONFile, "Results file name inside the output directory")
	pf.String("status-file", config.DefaultStatusFile, "Live status file name inside the output directory")
	pf.String("log-level", config.DefaultLogLevel, "Log level: trace, debug, info, warn, error")
	pf.Duration("progress-interval", config.DefaultProgressInterval, "How often progress and status are refreshed")
	pf.Duration("case-timeout", 0, "Default timeout for each command (0 = none)")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address during runs (e.g. :9090)")
	pf.String("history-driver", config.DefaultHistoryDriver, "Run history database: sqlite, mysql or none")
	pf.String("history-dsn", "", "History database DSN (default derives from driver)")
}

// AddSelectionFlags registers the flags that narrow which cases are used.
func AddSelectionFlags(cmd *cobra.Command, flags *Flags) {
	cmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter cases by number or title pattern (supports wildcards, e.g. 'PAY-*' or '*refund*')")
	cmd.Flags().StringVar(&flags.Feature, "feature", "", "Only cases of this feature")
	cmd.Flags().StringSliceVarP(&flags.Labels, "label", "l", nil, "Only cases carrying any of these labels")
	cmd.Flags().StringSliceVarP(&flags.Exclude, "exclude-label", "x", nil, "Leave out cases carrying any of these labels")
}
