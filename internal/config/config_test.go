package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotenv(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644))
}

func TestNew(t *testing.T) {
	cfg := New()
	assert.Equal(t, DefaultProjectPath, cfg.ProjectPath)
	assert.Equal(t, DefaultManifestFile, cfg.ManifestFile)
	assert.Equal(t, DefaultSuccessFlag, cfg.SuccessFlag)
	assert.Equal(t, DefaultProgressInterval, cfg.ProgressInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, nil, Flags{Filter: "AUTH-*"})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "AUTH-*", cfg.Flags.Filter)
	assert.Equal(t, filepath.Join(dir, DefaultManifestFile), cfg.GetManifestPath())
}

func TestLoadLayers(t *testing.T) {
	tests := []struct {
		name    string
		dotenv  string
		env     map[string]string
		args    []string
		flag    int
		level   string
		timeout time.Duration
	}{
		{
			name:   "dotenv over defaults",
			dotenv: "BOXRUN_SUCCESS_FLAG=3\nBOXRUN_LOG_LEVEL=debug\nUNRELATED=1\n",
			flag:   3,
			level:  "debug",
		},
		{
			name:    "environment over dotenv",
			dotenv:  "BOXRUN_SUCCESS_FLAG=3\n",
			env:     map[string]string{"BOXRUN_SUCCESS_FLAG": "5", "BOXRUN_CASE_TIMEOUT": "2s"},
			flag:    5,
			level:   "info",
			timeout: 2 * time.Second,
		},
		{
			name:   "flag over environment",
			dotenv: "BOXRUN_LOG_LEVEL=debug\n",
			env:    map[string]string{"BOXRUN_SUCCESS_FLAG": "5"},
			args:   []string{"--success-flag=9", "--log-level=warn"},
			flag:   9,
			level:  "warn",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDotenv(t, dir, tt.dotenv)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			fs.Int("success-flag", 0, "")
			fs.String("log-level", "info", "")
			require.NoError(t, fs.Parse(tt.args))

			cfg, err := Load(dir, fs, Flags{})
			require.NoError(t, err)
			assert.Equal(t, tt.flag, cfg.SuccessFlag)
			assert.Equal(t, tt.level, cfg.LogLevel)
			assert.Equal(t, tt.timeout, cfg.CaseTimeout)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BOXRUN_HISTORY_DRIVER", "postgres")
	_, err := Load(dir, nil, Flags{})
	assert.ErrorContains(t, err, "unsupported history driver")
}

func TestConfig_Paths(t *testing.T) {
	cfg := New()
	cfg.ProjectPath = "/project"

	assert.Equal(t, "/project/boxrun.yaml", cfg.GetManifestPath())
	assert.Equal(t, "/project/.boxrun/boxrun-results.json", cfg.GetOutputPath())
	assert.Equal(t, "/project/.boxrun/status.json", cfg.GetStatusPath())

	cfg.ManifestFile = "/elsewhere/suite.yaml"
	cfg.OutputJSONDir = "/var/boxrun"
	assert.Equal(t, "/elsewhere/suite.yaml", cfg.GetManifestPath())
	assert.Equal(t, "/var/boxrun/status.json", cfg.GetStatusPath())
}

func TestConfig_GetHistoryDSN(t *testing.T) {
	t.Run("sqlite file under output dir", func(t *testing.T) {
		cfg := New()
		cfg.ProjectPath = "/project"
		assert.True(t, cfg.HistoryEnabled())
		assert.Equal(t, "/project/.boxrun/history.db", cfg.GetHistoryDSN())
	})

	t.Run("explicit dsn wins", func(t *testing.T) {
		cfg := New()
		cfg.HistoryDSN = "file::memory:"
		assert.Equal(t, "file::memory:", cfg.GetHistoryDSN())
	})

	t.Run("mysql from dotenv", func(t *testing.T) {
		dir := t.TempDir()
		writeDotenv(t, dir, "DB_HOST=db.internal\nDB_USERNAME=suite\nDB_PASSWORD=secret\nDB_DATABASE=results\n")
		t.Setenv("BOXRUN_HISTORY_DRIVER", "mysql")
		t.Setenv("DB_PORT", "3307")

		cfg, err := Load(dir, nil, Flags{})
		require.NoError(t, err)
		assert.Equal(t, "suite:secret@tcp(db.internal:3307)/results?parseTime=true", cfg.GetHistoryDSN())
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := New()
		cfg.HistoryDriver = "none"
		assert.False(t, cfg.HistoryEnabled())
	})
}
