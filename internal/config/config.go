package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath  string `mapstructure:"-"`
	ManifestFile string `mapstructure:"manifest"`
	SuccessFlag  int    `mapstructure:"success_flag"`

	// Output settings
	OutputJSONFile string `mapstructure:"output_file"`
	OutputJSONDir  string `mapstructure:"output_dir"`
	StatusFile     string `mapstructure:"status_file"`

	// Execution settings
	LogLevel         string        `mapstructure:"log_level"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	CaseTimeout      time.Duration `mapstructure:"case_timeout"`

	// Collaborators
	MetricsAddr   string `mapstructure:"metrics_addr"`
	HistoryDriver string `mapstructure:"history_driver"`
	HistoryDSN    string `mapstructure:"history_dsn"`

	// Command flags
	Flags Flags `mapstructure:"-"`

	dotenv map[string]string
}

// Flags holds command-line flags that only select what to run or show
type Flags struct {
	Filter       string
	Feature      string
	Labels       []string
	Exclude      []string
	NoProgress   bool
	OpenFailures bool
}

// keys lists every setting resolved through viper. A flag named like the
// key with dashes ("success-flag") overrides it.
var keys = []string{
	"manifest",
	"success_flag",
	"output_file",
	"output_dir",
	"status_file",
	"log_level",
	"progress_interval",
	"case_timeout",
	"metrics_addr",
	"history_driver",
	"history_dsn",
}

// New creates a new Config with defaults
func New() *Config {
	return &Config{
		ProjectPath:      DefaultProjectPath,
		ManifestFile:     DefaultManifestFile,
		SuccessFlag:      DefaultSuccessFlag,
		OutputJSONFile:   DefaultOutputJSONFile,
		OutputJSONDir:    DefaultOutputJSONDir,
		StatusFile:       DefaultStatusFile,
		LogLevel:         DefaultLogLevel,
		ProgressInterval: DefaultProgressInterval,
		HistoryDriver:    DefaultHistoryDriver,
	}
}

func setDefaults(v *viper.Viper) {
	d := New()
	v.SetDefault("manifest", d.ManifestFile)
	v.SetDefault("success_flag", d.SuccessFlag)
	v.SetDefault("output_file", d.OutputJSONFile)
	v.SetDefault("output_dir", d.OutputJSONDir)
	v.SetDefault("status_file", d.StatusFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("progress_interval", d.ProgressInterval)
	v.SetDefault("case_timeout", time.Duration(0))
	v.SetDefault("metrics_addr", "")
	v.SetDefault("history_driver", d.HistoryDriver)
	v.SetDefault("history_dsn", "")
}

// Load resolves the configuration for the project at projectPath. Layers,
// lowest first: defaults, BOXRUN_* entries of <project>/.env, BOXRUN_*
// environment variables, then any flag in flagSet that was set explicitly.
func Load(projectPath string, flagSet *pflag.FlagSet, flags Flags) (*Config, error) {
	if projectPath == "" {
		projectPath = DefaultProjectPath
	}
	v := viper.New()
	setDefaults(v)

	dotenv, err := readDotenv(filepath.Join(projectPath, ".env"))
	if err != nil {
		return nil, err
	}
	prefix := EnvPrefix + "_"
	for name, value := range dotenv {
		if key, ok := strings.CutPrefix(name, prefix); ok {
			v.SetDefault(strings.ToLower(key), value)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flagSet != nil {
		for _, key := range keys {
			if f := flagSet.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.ProjectPath = projectPath
	cfg.Flags = flags
	cfg.dotenv = dotenv
	return cfg, cfg.Validate()
}

// readDotenv reads a .env file without touching the process environment.
// A missing file is not an error.
func readDotenv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

// Validate rejects settings the runner cannot work with.
func (c *Config) Validate() error {
	if c.ManifestFile == "" {
		return errors.New("manifest file must not be empty")
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got %s", c.ProgressInterval)
	}
	if c.CaseTimeout < 0 {
		return fmt.Errorf("case timeout must not be negative, got %s", c.CaseTimeout)
	}
	switch c.HistoryDriver {
	case "", "none", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported history driver %q", c.HistoryDriver)
	}
	return nil
}

// GetManifestPath returns the manifest path, relative to the project unless absolute.
func (c *Config) GetManifestPath() string {
	return c.resolve(c.ManifestFile)
}

// GetOutputPath returns the absolute path of the results file so that every
// command reads and writes the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	return abs(filepath.Join(c.resolve(c.OutputJSONDir), c.OutputJSONFile))
}

// GetStatusPath returns the absolute path of the live status file.
func (c *Config) GetStatusPath() string {
	return abs(filepath.Join(c.resolve(c.OutputJSONDir), c.StatusFile))
}

// HistoryEnabled reports whether runs are recorded to a database.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDriver != "" && c.HistoryDriver != "none"
}

// GetHistoryDSN returns the data source name for the history database. An
// empty sqlite DSN means a file under the output directory; an empty mysql
// DSN is assembled from the DB_* variables, like a Laravel .env.
func (c *Config) GetHistoryDSN() string {
	if c.HistoryDSN != "" {
		return c.HistoryDSN
	}
	switch c.HistoryDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			c.lookup("DB_USERNAME", "root"),
			c.lookup("DB_PASSWORD", ""),
			c.lookup("DB_HOST", "127.0.0.1"),
			c.lookup("DB_PORT", "3306"),
			c.lookup("DB_DATABASE", "boxrun"))
	default:
		return abs(filepath.Join(c.resolve(c.OutputJSONDir), DefaultHistoryFile))
	}
}

// lookup prefers the process environment, then the project's .env file.
func (c *Config) lookup(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	if v := c.dotenv[name]; v != "" {
		return v
	}
	return fallback
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
