package storage

import (
	"boxrun/internal/config"
	"boxrun/internal/domain"
)

// Storage persists and loads run results (e.g. for the failure viewer).
type Storage interface {
	Save(output *domain.ResultsOutput) error
	Load() (*domain.ResultsOutput, error)
}

// JSONStorage stores results in a JSON file.
type JSONStorage struct {
	config *config.Config
	path   string
}

// NewJSONStorage returns a Storage bound to the config's output path. The
// path is resolved on every call, so later config changes are honoured.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{config: cfg}
}

// NewJSONStorageAt returns a Storage bound to an explicit file.
func NewJSONStorageAt(path string) *JSONStorage {
	return &JSONStorage{path: path}
}

// Path is the results file.
func (s *JSONStorage) Path() string {
	if s.path != "" {
		return s.path
	}
	return s.config.GetOutputPath()
}
