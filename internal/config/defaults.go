package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultManifestFile is the suite manifest looked up under the project path
	DefaultManifestFile = "boxrun.yaml"
	// DefaultSuccessFlag is the exit code that counts as passed
	DefaultSuccessFlag = 0
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "boxrun-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".boxrun"
	// DefaultStatusFile is the live status file polled by `boxrun status`
	DefaultStatusFile = "status.json"
	// DefaultLogLevel is the default console log level
	DefaultLogLevel = "info"
	// DefaultProgressInterval is how often the live monitor samples the tree
	DefaultProgressInterval = 500 * time.Millisecond
	// DefaultHistoryDriver is the database/sql driver used for run history
	DefaultHistoryDriver = "sqlite"
	// DefaultHistoryFile is the sqlite database kept under the output directory
	DefaultHistoryFile = "history.db"
)

// EnvPrefix prefixes every environment variable read by boxrun.
const EnvPrefix = "BOXRUN"
