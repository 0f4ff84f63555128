package ui

import "boxrun/internal/domain"

// Viewer displays stored run results interactively.
type Viewer interface {
	View(results *domain.ResultsOutput) error
}
