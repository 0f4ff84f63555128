package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"boxrun/internal/domain"
)

// NewResults assembles the stored form of a finished run.
func NewResults(snap domain.ProjectSnapshot, failures []domain.Failure, interrupted bool) *domain.ResultsOutput {
	counts := snap.Counts()
	if failures == nil {
		failures = []domain.Failure{}
	}
	return &domain.ResultsOutput{
		Meta: domain.ResultsMeta{
			RunID:           snap.RunID,
			Project:         snap.Name,
			SuccessFlag:     snap.SuccessFlag,
			TotalCases:      counts.Total(),
			PassedCases:     snap.Counters.Passed,
			FailedCases:     snap.Counters.Failed,
			ErroredCases:    snap.Counters.Errored,
			SkippedCases:    snap.Counters.Skipped,
			Duration:        snap.Duration.Round(time.Millisecond).String(),
			DurationSeconds: snap.Duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
			Interrupted:     interrupted,
		},
		Tree:    snap,
		Details: failures,
	}
}

// Save writes the results to the configured JSON output file.
func (s *JSONStorage) Save(output *domain.ResultsOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := atomicWrite(s.Path(), data); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// Load reads the last results from the configured JSON output file.
func (s *JSONStorage) Load() (*domain.ResultsOutput, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var output domain.ResultsOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &output, nil
}

// atomicWrite writes data to a temp file next to path and renames it into
// place, so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		tmp = nil
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}
